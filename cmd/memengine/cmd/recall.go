package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/config"
	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/search"
)

func newRecallCmd() *cobra.Command {
	var (
		mode         string
		k            int
		preview      int
		filterPath   string
		filterLang   string
		filterSymbol string
		trace        bool
		jsonOutput   bool
	)
	cmd := &cobra.Command{
		Use:     "recall <query>",
		Aliases: []string{"search"},
		Short:   "Search memories by lexical, vector, or hybrid ranking",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runRecall(cmd, query, recallOptions{
				mode: mode, k: k, preview: preview,
				filterPath: filterPath, filterLang: filterLang, filterSymbol: filterSymbol,
				trace: trace, jsonOutput: jsonOutput,
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: lexical, vector, hybrid")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results to return")
	cmd.Flags().IntVar(&preview, "preview", 3, "number of preview lines per result")
	cmd.Flags().StringVar(&filterPath, "filter-path", "", "glob filter on the memory's source path")
	cmd.Flags().StringVar(&filterLang, "filter-language", "", "filter on the memory's source language")
	cmd.Flags().StringVar(&filterSymbol, "filter-symbol", "", "substring filter on the memory's symbol name")
	cmd.Flags().BoolVar(&trace, "trace", false, "include per-candidate score trace")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

type recallOptions struct {
	mode, filterPath, filterLang, filterSymbol string
	k, preview                                 int
	trace, jsonOutput                          bool
}

func runRecall(cmd *cobra.Command, query string, opts recallOptions) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	k := opts.k
	if k <= 0 || !cmd.Flags().Changed("k") {
		if cfg.Search.MaxResults > 0 {
			k = cfg.Search.MaxResults
		}
	}

	var mode search.Mode
	switch opts.mode {
	case "", "hybrid":
		mode = search.ModeHybrid
	case "lexical":
		mode = search.ModeLexical
	case "vector":
		mode = search.ModeVector
	default:
		return engerrors.ValidationError(fmt.Sprintf("unknown search mode %q", opts.mode), nil)
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	var results []*search.Result
	err = guard.Run(cmd.Context(), "recall", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, embedder, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		engine, err := newEngine(s, vectors, embedder)
		if err != nil {
			return err
		}

		results, err = engine.Search(ctx, query, search.Options{
			Mode:         mode,
			K:            k,
			Alpha:        cfg.Search.BM25Weight,
			PreviewLines: opts.preview,
			Trace:        opts.trace,
			Filters: search.Filters{
				Path:     opts.filterPath,
				Language: opts.filterLang,
				Symbol:   opts.filterSymbol,
			},
		})
		return err
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	for i, r := range results {
		fmt.Fprintf(out, "%d. #%d  score=%.3f  [%s]\n", i+1, r.Memory.ID, r.Score, r.Memory.Kind)
		if r.Preview != "" {
			fmt.Fprintln(out, indent(r.Preview, "    "))
		}
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no matches")
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
