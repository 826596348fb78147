package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/store"
)

func newRememberCmd() *cobra.Command {
	var (
		memContext string
		kind       string
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Store a note as a new memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return runRemember(cmd, content, memContext, kind, tags)
		},
	}
	cmd.Flags().StringVar(&memContext, "context", "general", "free-form tag classifying the memory's origin")
	cmd.Flags().StringVar(&kind, "kind", "note", "memory kind (note, code, symbol, ...)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	return cmd
}

func runRemember(cmd *cobra.Command, content, memContext, kind string, tags []string) error {
	if strings.TrimSpace(content) == "" {
		return engerrors.ValidationError("content must not be empty", nil)
	}

	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "remember", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, embedder, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		m := &store.Memory{
			Content: content,
			Context: memContext,
			Kind:    kind,
			Tags:    tags,
		}
		id, created, err := s.InsertMemory(ctx, m)
		if err != nil {
			return err
		}

		if created && embedder != nil {
			vec, err := embedder.Embed(ctx, content)
			if err == nil {
				_ = s.PutEmbedding(ctx, &store.Embedding{MemoryID: id, Dimension: len(vec), Vector: vec})
				_ = vectors.Add(ctx, []string{memoryIDToVectorKey(id)}, [][]float32{vec})
			}
		}

		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "remembered as #%d\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "already remembered as #%d\n", id)
		}
		return nil
	})
}
