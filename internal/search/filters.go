package search

import (
	"path/filepath"
	"strings"

	"github.com/memengine/memengine/internal/store"
)

// matchesFilters applies Filters to a Memory's metadata. Empty fields are
// skipped; all present fields must match (AND semantics).
func matchesFilters(m *store.Memory, f Filters) bool {
	if f.Path != "" {
		path := m.Metadata["path"]
		ok, err := filepath.Match(f.Path, path)
		if err != nil || !ok {
			return false
		}
	}
	if f.Language != "" {
		if m.Metadata["language"] != f.Language {
			return false
		}
	}
	if f.Symbol != "" {
		if !strings.Contains(m.Metadata["symbol_name"], f.Symbol) {
			return false
		}
	}
	return true
}
