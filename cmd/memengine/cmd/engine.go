package cmd

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/memengine/memengine/internal/embed"
	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/search"
	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

// memoryIDToVectorKey stringifies a memory id into the vector index's
// string-keyed id space.
func memoryIDToVectorKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// vectorIndexFileName is where the in-memory vector index is persisted
// between runs, under the project's .store directory.
const vectorIndexFileName = "vectors.idx"

// openDeps opens the encrypted metadata/FTS store, builds an embedder, and
// rebuilds the vector index from the store's persisted embeddings. Callers
// must pass the returned store and vector index to closeDeps when done.
func openDeps(ctx context.Context, root string) (s *store.Store, embedder embed.Embedder, vectors vectorindex.VectorStore, err error) {
	key, err := store.ResolveMachineKey(root)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err = store.Open(ctx, root, key)
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err = embed.New(root)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}

	vectors, err = vectorindex.Open(vectorindex.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
		Metric:     "cos",
	}, vectorindex.BackendAuto)
	if err != nil {
		s.Close()
		return nil, nil, nil, engerrors.Wrap(engerrors.ErrCodeInternal, err)
	}

	idxPath := filepath.Join(root, ".store", vectorIndexFileName)
	_ = vectors.Load(idxPath) // absent on first run, rebuilt below regardless

	embeddings, err := s.GetAllEmbeddings(ctx)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	ids := make([]string, 0, len(embeddings))
	vecs := make([][]float32, 0, len(embeddings))
	for id, vec := range embeddings {
		if vectors.Contains(memoryIDToVectorKey(id)) {
			continue
		}
		ids = append(ids, memoryIDToVectorKey(id))
		vecs = append(vecs, vec)
	}
	if len(ids) > 0 {
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			s.Close()
			return nil, nil, nil, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}
	}

	return s, embedder, vectors, nil
}

// closeDeps persists the vector index and closes the store.
func closeDeps(root string, s *store.Store, vectors vectorindex.VectorStore) {
	if vectors != nil {
		_ = vectors.Save(filepath.Join(root, ".store", vectorIndexFileName))
	}
	if s != nil {
		s.Close()
	}
}

func newEngine(s *store.Store, vectors vectorindex.VectorStore, embedder embed.Embedder) (*search.Engine, error) {
	return search.NewEngine(s, s, vectors, embedder)
}
