package store

import (
	"crypto/rand"
	"os"
	"path/filepath"

	engerrors "github.com/memengine/memengine/internal/errors"
)

const machineKeyFileName = "machine.key"

// ResolveMachineKey reads the machine-bound passphrase Open derives the
// store's encryption key from, generating a fresh random 32-byte key on
// first use at <project_root>/.store/machine.key (mode 0600). The key
// never leaves the local filesystem, is never read from an environment
// variable, and is never written into an exported bundle.
func ResolveMachineKey(projectRoot string) ([]byte, error) {
	dir := filepath.Join(projectRoot, ".store")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "create store directory", err)
	}
	path := filepath.Join(dir, machineKeyFileName)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "read machine key", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "generate machine key", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "write machine key", err)
	}
	return key, nil
}
