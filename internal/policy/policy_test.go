package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/memengine/memengine/internal/errors"
)

func TestLoadCreatesDefaultPolicy(t *testing.T) {
	dir := t.TempDir()

	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.CommandAllowed("status", time.Now()) {
		t.Fatal("expected status to be allowed by default")
	}

	if _, err := os.Stat(filepath.Join(dir, ".store", PolicyFileName)); err != nil {
		t.Fatalf("expected policy file to be persisted: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	p := DefaultPolicy(dir)
	p.AllowedCommands = append(p.AllowedCommands, "custom-command")
	if err := Save(dir, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.CommandAllowed("custom-command", time.Now()) {
		t.Fatal("expected custom-command to round-trip")
	}
}

func TestCommandAllowedHonorsTrustTokenExpiry(t *testing.T) {
	p := Policy{TrustTokens: map[string]time.Time{"risky": time.Now().Add(time.Hour)}}
	if !p.CommandAllowed("risky", time.Now()) {
		t.Fatal("expected unexpired trust token to allow command")
	}
	if p.CommandAllowed("risky", time.Now().Add(2*time.Hour)) {
		t.Fatal("expected expired trust token to deny command")
	}
}

func TestGuardRunBlocksDisallowedCommand(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGuard(dir)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	called := false
	err = g.Run(context.Background(), "not-a-real-command", nil, []string{"not-a-real-command"}, func(ctx context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("fn must not run when command is blocked")
	}
	if errors.GetCode(err) != errors.ErrCodePolicyBlocked {
		t.Fatalf("expected ERR_101_POLICY_BLOCKED, got %v", err)
	}
}

func TestGuardRunBlocksDisallowedPath(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGuard(dir)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	outside := filepath.Join(os.TempDir(), "elsewhere", "secret.txt")
	called := false
	err = g.Run(context.Background(), "remember", []string{outside}, nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("fn must not run when path is denied")
	}
	if errors.GetCode(err) != errors.ErrCodePathDenied {
		t.Fatalf("expected ERR_102_PATH_DENIED, got %v", err)
	}
}

func TestGuardRunAllowsAndInstallsNetworkGuard(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGuard(dir)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	var activeDuringRun bool
	err = g.Run(context.Background(), "status", []string{dir}, nil, func(ctx context.Context) error {
		activeDuringRun = Active()
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !activeDuringRun {
		t.Fatal("expected network guard to be active during fn")
	}
	if Active() {
		t.Fatal("expected network guard to be removed after Run returns")
	}

	entries, err := os.ReadDir(filepath.Join(dir, ".store", "receipts"))
	if err != nil {
		t.Fatalf("ReadDir receipts: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one receipt, got %d", len(entries))
	}
}

func TestGuardAllowCommandPersists(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGuard(dir)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if err := g.AllowCommand("watch-mode"); err != nil {
		t.Fatalf("AllowCommand: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.CommandAllowed("watch-mode", time.Now()) {
		t.Fatal("expected persisted allow-command to survive reload")
	}
}

func TestNetworkInterceptorRefusesDial(t *testing.T) {
	Install()
	defer Remove()

	before := Attempts()
	_, err := GuardedDialContext(context.Background(), "tcp", "example.com:443")
	if err != ErrNetworkBlocked {
		t.Fatalf("expected ErrNetworkBlocked, got %v", err)
	}
	if Attempts() != before+1 {
		t.Fatalf("expected attempts to increment, got %d -> %d", before, Attempts())
	}
}
