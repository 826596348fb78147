package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/policy"
)

func newDBDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-doctor",
		Short: "Check store integrity and repair what can be repaired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBDoctor(cmd)
		},
	}
}

func runDBDoctor(cmd *cobra.Command) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "db-doctor", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, _, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		report, err := s.DBDoctor(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "healthy=%v rebuilt=%v memory_count=%d\n", report.Healthy, report.Rebuilt, report.MemoryCount)
		if report.BackupPath != "" {
			fmt.Fprintf(out, "backup: %s\n", report.BackupPath)
		}
		if report.Detail != "" {
			fmt.Fprintln(out, report.Detail)
		}
		return nil
	})
}
