package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and adjust the local command/path/network policy",
	}
	cmd.AddCommand(newPolicyStatusCmd())
	cmd.AddCommand(newPolicyAllowCommandCmd())
	cmd.AddCommand(newPolicyAllowPathCmd())
	cmd.AddCommand(newPolicyDoctorCmd())
	cmd.AddCommand(newPolicyTrustCmd())
	return cmd
}

func newPolicyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current policy and live guard state",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			guard, err := policy.NewGuard(root)
			if err != nil {
				return err
			}
			data, err := guard.Doctor().MarshalStatus()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newPolicyDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the policy file and network guard for inconsistencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			guard, err := policy.NewGuard(root)
			if err != nil {
				return err
			}
			report := guard.Doctor()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "network guard active: %v\n", report.NetworkActive)
			fmt.Fprintf(out, "blocked attempts:     %d\n", report.BlockedAttempts)
			fmt.Fprintf(out, "allowed commands:     %v\n", report.Policy.AllowedCommands)
			fmt.Fprintf(out, "allowed paths:        %v\n", report.Policy.AllowedPaths)
			return nil
		},
	}
}

func newPolicyAllowCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allow-command <command>",
		Short: "Add a command to the allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			guard, err := policy.NewGuard(root)
			if err != nil {
				return err
			}
			if err := guard.AllowCommand(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allowed command: %s\n", args[0])
			return nil
		},
	}
}

func newPolicyAllowPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allow-path <glob>",
		Short: "Add a path glob to the allow-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			guard, err := policy.NewGuard(root)
			if err != nil {
				return err
			}
			if err := guard.AllowPath(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allowed path: %s\n", args[0])
			return nil
		},
	}
}

func newPolicyTrustCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "trust <command>",
		Short: "Temporarily trust a command without an allow-list entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return engerrors.ValidationError("--ttl must be positive", nil)
			}
			root, err := projectRoot()
			if err != nil {
				return err
			}
			guard, err := policy.NewGuard(root)
			if err != nil {
				return err
			}
			if err := guard.TrustCommand(args[0], ttl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trusted %s for %s\n", args[0], ttl)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "how long the trust token remains valid")
	return cmd
}
