package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// PolicyFileName is the name of the policy configuration file under .store/.
const PolicyFileName = "policy.json"

// Load reads the policy file from projectRoot's .store directory, creating
// a DefaultPolicy (and writing it) if none exists yet.
func Load(projectRoot string) (Policy, error) {
	path := filepath.Join(projectRoot, ".store", PolicyFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p := DefaultPolicy(projectRoot)
		if err := Save(projectRoot, p); err != nil {
			return Policy{}, err
		}
		return p, nil
	}
	if err != nil {
		return Policy{}, engerrors.InternalError("failed to read policy file", err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, engerrors.InternalError("failed to parse policy file", err)
	}
	if p.TrustTokens == nil {
		p.TrustTokens = map[string]time.Time{}
	}
	return p, nil
}

// Save atomically writes p to projectRoot's .store/policy.json.
func Save(projectRoot string, p Policy) error {
	dir := filepath.Join(projectRoot, ".store")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerrors.InternalError("failed to create store directory", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return engerrors.InternalError("failed to marshal policy", err)
	}

	path := filepath.Join(dir, PolicyFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return engerrors.InternalError("failed to write policy file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return engerrors.InternalError("failed to finalize policy file", err)
	}
	return nil
}
