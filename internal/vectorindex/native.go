package vectorindex

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/ebitengine/purego"
)

// nativeLibraryCandidates lists the dynamic library names probed, in order,
// for an installed BLAS providing single-precision dot product. When none
// load, newNativeStore fails and callers fall back to the brute-force
// backend; nothing about offline operation depends on one being present.
func nativeLibraryCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/usr/lib/libblas.dylib", "libopenblas.dylib"}
	case "linux":
		return []string{"libopenblas.so.0", "libblas.so.3", "libcblas.so.3"}
	default:
		return nil
	}
}

// nativeStore accelerates cosine scoring with a dlopen'd BLAS sdot symbol,
// probed at runtime via purego so the binary never links against it and
// stays a single static Go executable. A Go dot product is used only when no
// sdot function is registered or the vectors are empty; a failing native
// call is not caught or retried in Go.
type nativeStore struct {
	mu      sync.RWMutex
	config  VectorStoreConfig
	vectors map[string][]float32
	lib     uintptr
	sdot    func(n int32, x *float32, incx int32, y *float32, incy int32) float32
	closed  bool
}

func newNativeStore(cfg VectorStoreConfig) (VectorStore, error) {
	candidates := nativeLibraryCandidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no native vector backend known for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	var lib uintptr
	var lastErr error
	for _, path := range candidates {
		h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			lib = h
			break
		}
		lastErr = err
	}
	if lib == 0 {
		return nil, fmt.Errorf("no native BLAS library available: %w", lastErr)
	}

	s := &nativeStore{config: cfg, vectors: make(map[string][]float32), lib: lib}
	if cfg.Metric == "" {
		s.config.Metric = "cos"
	}
	purego.RegisterLibFunc(&s.sdot, lib, "cblas_sdot")
	if s.sdot == nil {
		purego.Dlclose(lib)
		return nil, fmt.Errorf("native library missing cblas_sdot symbol")
	}
	return s, nil
}

func (s *nativeStore) dot(a, b []float32) float32 {
	if s.sdot == nil || len(a) == 0 {
		var sum float32
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum
	}
	return s.sdot(int32(len(a)), &a[0], 1, &b[0], 1)
}

func (s *nativeStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for i, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(cp)
		}
		s.vectors[ids[i]] = cp
	}
	return nil
}

func (s *nativeStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(q)
	}

	results := make([]*VectorResult, 0, len(s.vectors))
	for id, v := range s.vectors {
		var d float32
		if s.config.Metric == "l2" {
			d = euclidean(q, v)
		} else {
			d = 1 - s.dot(q, v)
		}
		results = append(results, &VectorResult{ID: id, Distance: d, Score: distanceToScore(d, s.config.Metric)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

func (s *nativeStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *nativeStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	return ids
}

func (s *nativeStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vectors[id]
	return ok
}

func (s *nativeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Save/Load delegate to an embedded brute-force snapshot format; the native
// backend only changes how distances are scored, not how vectors persist.
func (s *nativeStore) Save(path string) error {
	s.mu.RLock()
	bf := &BruteForceStore{config: s.config, vectors: s.vectors}
	s.mu.RUnlock()
	return bf.Save(path)
}

func (s *nativeStore) Load(path string) error {
	bf := NewBruteForceStore(s.config)
	if err := bf.Load(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = bf.config
	s.vectors = bf.vectors
	return nil
}

func (s *nativeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.lib != 0 {
		purego.Dlclose(s.lib)
	}
	return nil
}

var _ VectorStore = (*nativeStore)(nil)
