package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func writeLogLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.log")
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteString("\n")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestViewer_Tail_ReturnsLastNEntries(t *testing.T) {
	path := writeLogLines(t,
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"first"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"INFO","msg":"second"}`,
		`{"time":"2026-01-01T00:00:02Z","level":"INFO","msg":"third"}`,
	)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Msg != "second" || entries[1].Msg != "third" {
		t.Fatalf("unexpected tail order: %+v", entries)
	}
}

func TestViewer_Tail_FiltersByLevel(t *testing.T) {
	path := writeLogLines(t,
		`{"time":"2026-01-01T00:00:00Z","level":"DEBUG","msg":"verbose"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"failure"}`,
	)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 1 || entries[0].Msg != "failure" {
		t.Fatalf("Tail() = %+v, want only the error entry", entries)
	}
}

func TestViewer_Tail_FiltersByPattern(t *testing.T) {
	path := writeLogLines(t,
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"policy blocked egress"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"INFO","msg":"search completed"}`,
	)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile("blocked"), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 1 || entries[0].Msg != "policy blocked egress" {
		t.Fatalf("Tail() = %+v, want only the matching entry", entries)
	}
}

func TestViewer_FormatEntry_FallsBackToRawOnParseFailure(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := v.parseLine("not json")
	if entry.IsValid {
		t.Fatalf("expected invalid entry for non-JSON line")
	}
	if got := v.FormatEntry(entry); got != "not json" {
		t.Fatalf("FormatEntry() = %q, want raw passthrough", got)
	}
}

func TestViewer_Print_WritesFormattedLines(t *testing.T) {
	var out bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &out)
	v.Print([]LogEntry{v.parseLine(`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"hello"}`)})
	if got := out.String(); got == "" {
		t.Fatalf("Print() wrote nothing")
	}
}
