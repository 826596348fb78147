package embed

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToStatic(t *testing.T) {
	t.Setenv(ModelEnvVar, "")
	dir := t.TempDir()

	embedder, err := New(dir)
	require.NoError(t, err)
	defer embedder.Close()

	cached, ok := embedder.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNewResolvesModelEnvVar(t *testing.T) {
	dir := t.TempDir()
	modelID := "unit-test-model"
	writeModelFixture(t, dir, modelID, "hello world", []float32{1, 2, 3, 4})

	t.Setenv(ModelEnvVar, modelID)
	embedder, err := New(dir)
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vec)
}

func TestNewMissingModelIsModelUnavailable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ModelEnvVar, "does-not-exist")

	_, err := New(dir)
	require.Error(t, err)
}

func TestCacheModelEmbedderUnknownInput(t *testing.T) {
	dir := t.TempDir()
	writeModelFixture(t, dir, "m", "known", []float32{1, 1, 1, 1})

	e, err := NewCacheModelEmbedder(dir, "m", 4)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "unknown text")
	assert.Error(t, err)
}

// writeModelFixture writes a one-entry cache model table file in the format
// CacheModelEmbedder expects: 64-byte hex key + dims*4 little-endian float32s.
func writeModelFixture(t *testing.T, projectRoot, modelID, text string, vec []float32) {
	t.Helper()
	dir := filepath.Join(projectRoot, ".store", "models")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	key := cacheTableKey(text)
	buf := make([]byte, 0, 64+len(vec)*4)
	buf = append(buf, []byte(key)...)
	for _, f := range vec {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(f))
		buf = append(buf, b...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, modelID), buf, 0o644))
}
