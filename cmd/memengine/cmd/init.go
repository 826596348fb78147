package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/config"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the local store and policy under .store/",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd)
		},
	}
}

func runInit(cmd *cobra.Command) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "init", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		key, err := store.ResolveMachineKey(root)
		if err != nil {
			return err
		}
		s, err := store.Open(ctx, root, key)
		if err != nil {
			return err
		}
		defer s.Close()

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		if err := config.SaveProjectConfig(root, cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "initialized memengine store at %s/.store\n", root)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote resolved config to %s/.memengine.yaml\n", root)
		return nil
	})
}
