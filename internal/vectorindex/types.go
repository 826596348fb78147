// Package vectorindex provides the dense-vector nearest-neighbor backend: a
// mandatory exact brute-force index, and a native-library probe via purego
// that prefers a platform-provided accelerated search library when one is
// present on the dynamic linker path.
package vectorindex

import (
	"context"
	"fmt"
)

// VectorStoreConfig configures a vector index backend.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32 // higher is better, normalized to roughly [0, 1]
}

// VectorStore is implemented by every backend: the brute-force fallback and
// the purego-probed native extension.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector's dimension does not match the
// index's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Backend selects which VectorStore implementation to build.
type Backend string

const (
	// BackendAuto probes for a native extension and falls back to the
	// exact brute-force index when none is available.
	BackendAuto Backend = "auto"
	// BackendBruteForce forces the exact, dependency-free fallback.
	BackendBruteForce Backend = "bruteforce"
	// BackendNative forces the purego-probed native extension, failing if
	// none is available on this platform.
	BackendNative Backend = "native"
)

// Open constructs a VectorStore for the requested backend. BackendAuto tries
// native, then falls back to brute force, which always succeeds.
func Open(cfg VectorStoreConfig, backend Backend) (VectorStore, error) {
	switch backend {
	case BackendNative:
		return newNativeStore(cfg)
	case BackendBruteForce, "":
		return NewBruteForceStore(cfg), nil
	case BackendAuto:
		if store, err := newNativeStore(cfg); err == nil {
			return store, nil
		}
		return NewBruteForceStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown vector index backend: %s", backend)
	}
}
