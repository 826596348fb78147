package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/embed"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store health, memory counts, and policy state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput, noColor)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI color in the index-status panel")
	return cmd
}

type statusReport struct {
	ProjectRoot  string              `json:"project_root"`
	MemoryCount  int                 `json:"memory_count"`
	FTS          *store.IndexStats   `json:"fts"`
	NetworkGuard bool                `json:"network_guard_active"`
	OfflineProof policy.OfflineProof `json:"offline_proof"`
	Index        ui.StatusInfo       `json:"index"`
}

func runStatus(cmd *cobra.Command, jsonOutput, noColor bool) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	var report statusReport
	err = guard.Run(cmd.Context(), "status", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		key, err := store.ResolveMachineKey(root)
		if err != nil {
			return err
		}
		s, err := store.Open(ctx, root, key)
		if err != nil {
			return err
		}
		defer s.Close()

		memories, err := s.ListMemories(ctx, "", 1_000_000)
		if err != nil {
			return err
		}

		files := make(map[string]struct{}, len(memories))
		var lastIndexed time.Time
		for _, m := range memories {
			if p := m.Metadata["path"]; p != "" {
				files[p] = struct{}{}
			}
			if m.UpdatedAt.After(lastIndexed) {
				lastIndexed = m.UpdatedAt
			}
		}

		embedder, embedErr := embed.New(root)
		embedderType, embedderModel, embedderStatus := "static", "", "offline"
		if embedErr == nil {
			defer embedder.Close()
			embedderModel = embedder.ModelName()
			if os.Getenv(embed.ModelEnvVar) != "" {
				embedderType = "model"
			}
			if embedder.Available(ctx) {
				embedderStatus = "ready"
			}
		} else {
			embedderStatus = "error"
		}

		metadataSize := fileSize(filepath.Join(root, ".store", "db"))
		vectorSize := fileSize(filepath.Join(root, ".store", vectorIndexFileName))

		report = statusReport{
			ProjectRoot:  root,
			MemoryCount:  len(memories),
			FTS:          s.Stats(),
			NetworkGuard: policy.Active(),
			OfflineProof: policy.CurrentOfflineProof(guard.Policy().NetworkEgress),
			Index: ui.StatusInfo{
				ProjectName: filepath.Base(root),
				TotalFiles:  len(files),
				TotalChunks: len(memories),
				LastIndexed: lastIndexed,
				// Metadata and the BM25 full-text index share one sqlite
				// file (see internal/store/sqlite_store.go); there is no
				// separate BM25Size to report.
				MetadataSize:   metadataSize,
				VectorSize:     vectorSize,
				TotalSize:      metadataSize + vectorSize,
				EmbedderType:   embedderType,
				EmbedderModel:  embedderModel,
				EmbedderStatus: embedderStatus,
				WatcherStatus:  "n/a",
			},
		}
		return nil
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	if !cmd.Flags().Changed("no-color") {
		noColor = ui.DetectNoColor() || ui.DetectCI() || !ui.IsTTY(out)
	}
	fmt.Fprintf(out, "project root:    %s\n", report.ProjectRoot)
	fmt.Fprintf(out, "memories:        %d\n", report.MemoryCount)
	fmt.Fprintf(out, "network egress:  %s\n", report.OfflineProof.PolicyNetworkEgress)
	fmt.Fprintf(out, "network guard:   %v\n", report.NetworkGuard)
	fmt.Fprintln(out)

	return ui.NewStatusRenderer(out, noColor).Render(report.Index)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
