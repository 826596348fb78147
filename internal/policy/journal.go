package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// JournalFileName is the append-only event log under .store/.
const JournalFileName = "journal.jsonl"

// JournalEntry is one line of the append-only journal: a terse event
// record distinct from the fuller per-command Receipt.
type JournalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Command   string    `json:"command,omitempty"`
	Verdict   Verdict   `json:"verdict,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

var journalMu sync.Mutex

// AppendJournal appends one JSON line to .store/journal.jsonl, opening in
// append mode so concurrent writers never interleave partial lines.
func AppendJournal(projectRoot string, e JournalEntry) error {
	journalMu.Lock()
	defer journalMu.Unlock()

	dir := filepath.Join(projectRoot, ".store")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerrors.InternalError("failed to create store directory", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return engerrors.InternalError("failed to marshal journal entry", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(filepath.Join(dir, JournalFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return engerrors.InternalError("failed to open journal file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return engerrors.InternalError("failed to append journal entry", err)
	}
	return f.Sync()
}
