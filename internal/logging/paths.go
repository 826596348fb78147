package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the log directory under the project's store root
// (<project_root>/.store/logs). Logging is project-local, matching the
// store's own on-disk layout — there is no global per-user log directory.
func DefaultLogDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".store", "logs")
}

// DefaultLogPath returns the default engine log path for a project root.
func DefaultLogPath(projectRoot string) string {
	return filepath.Join(DefaultLogDir(projectRoot), "engine.log")
}

// FindLogFile resolves the log file to display: an explicit path if given,
// otherwise the project's default log path.
func FindLogFile(projectRoot, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	p := DefaultLogPath(projectRoot)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no log file found; expected at: %s", p)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir(projectRoot string) error {
	return os.MkdirAll(DefaultLogDir(projectRoot), 0o755)
}
