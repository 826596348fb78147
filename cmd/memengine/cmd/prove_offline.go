package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/policy"
)

func newProveOfflineCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "prove-offline",
		Short: "Attest that the network guard is active and no egress occurred",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProveOffline(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runProveOffline(cmd *cobra.Command, jsonOutput bool) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	var proof policy.OfflineProof
	err = guard.Run(cmd.Context(), "prove-offline", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		proof = policy.CurrentOfflineProof(guard.Policy().NetworkEgress)
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(proof, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "policy network egress: %s\n", proof.PolicyNetworkEgress)
	fmt.Fprintf(out, "network guard active:  %v\n", proof.NetworkGuardActive)
	fmt.Fprintf(out, "proxy env vars set:    %v\n", proof.ProxiesPresent)
	return nil
}
