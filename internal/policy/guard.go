package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// Guard wraps a single command invocation: it checks the command and its
// touched paths against the loaded Policy, installs the network
// interceptor for the duration of the call, and writes exactly one
// Receipt no matter which exit path is taken.
type Guard struct {
	projectRoot string
	policy      Policy
}

// NewGuard loads the policy for projectRoot and returns a Guard ready to
// wrap command invocations.
func NewGuard(projectRoot string) (*Guard, error) {
	p, err := Load(projectRoot)
	if err != nil {
		return nil, err
	}
	return &Guard{projectRoot: projectRoot, policy: p}, nil
}

// Policy returns the guard's currently loaded policy.
func (g *Guard) Policy() Policy { return g.policy }

// Reload re-reads the policy file, picking up changes made by `policy
// allow-command`/`policy allow-path`/`policy trust` since the guard was
// constructed.
func (g *Guard) Reload() error {
	p, err := Load(g.projectRoot)
	if err != nil {
		return err
	}
	g.policy = p
	return nil
}

// Run checks command and paths against the policy, installs the network
// guard, invokes fn, removes the network guard on every exit path, and
// writes a receipt recording the verdict. If the checks fail, fn is never
// called and Run returns a PolicyBlocked/PathDenied EngineError.
func (g *Guard) Run(ctx context.Context, command string, touchedPaths []string, argv []string, fn func(ctx context.Context) error) error {
	now := time.Now()
	receipt := Receipt{
		Command:    command,
		Timestamp:  now,
		ArgvDigest: digestArgv(argv),
	}

	if !g.policy.CommandAllowed(command, now) {
		receipt.Verdict = VerdictBlocked
		receipt.RemediationHint = "policy allow-command " + command
		err := engerrors.PolicyError(engerrors.ErrCodePolicyBlocked, "command \""+command+"\" is not in the allowed-commands list")
		receipt.Error = receiptErrorFrom(err)
		_ = WriteReceipt(g.projectRoot, receipt)
		_ = AppendJournal(g.projectRoot, JournalEntry{Timestamp: now, Event: "guard_blocked", Command: command, Verdict: VerdictBlocked, Detail: receipt.RemediationHint})
		return err
	}

	for _, p := range touchedPaths {
		if !g.pathAllowed(p) {
			receipt.Verdict = VerdictBlocked
			receipt.RemediationHint = "policy allow-path " + p
			err := engerrors.PolicyError(engerrors.ErrCodePathDenied, "path \""+p+"\" is not in the allowed-paths list")
			receipt.Error = receiptErrorFrom(err)
			_ = WriteReceipt(g.projectRoot, receipt)
			_ = AppendJournal(g.projectRoot, JournalEntry{Timestamp: now, Event: "guard_blocked", Command: command, Verdict: VerdictBlocked, Detail: receipt.RemediationHint})
			return err
		}
	}

	Install()
	defer Remove()

	proof := CurrentOfflineProof(g.policy.NetworkEgress)
	receipt.OfflineProof = &proof
	receipt.Verdict = VerdictAllowed

	runErr := fn(ctx)
	if runErr != nil {
		receipt.Error = receiptErrorFrom(runErr)
	}

	_ = WriteReceipt(g.projectRoot, receipt)
	_ = AppendJournal(g.projectRoot, JournalEntry{Timestamp: now, Event: "guard_allowed", Command: command, Verdict: VerdictAllowed})

	return runErr
}

func (g *Guard) pathAllowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, pattern := range g.policy.AllowedPaths {
		if matchGlob(pattern, abs) {
			return true
		}
	}
	return false
}

// matchGlob supports a trailing "/**" suffix (match pattern's prefix and
// everything below it) in addition to filepath.Match's single-segment
// wildcards.
func matchGlob(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
	}
	ok, err := filepath.Match(pattern, path)
	return err == nil && ok
}

func digestArgv(argv []string) string {
	h := sha256.Sum256([]byte(strings.Join(argv, "\x00")))
	return hex.EncodeToString(h[:])
}

func receiptErrorFrom(err error) *ReceiptError {
	return &ReceiptError{
		Code:    engerrors.GetCode(err),
		Kind:    string(engerrors.GetKind(err)),
		Message: err.Error(),
	}
}

// TrustCommand grants cmd a time-limited trust token that bypasses the
// allow-commands check until expiry, then persists the policy.
func (g *Guard) TrustCommand(cmd string, ttl time.Duration) error {
	if g.policy.TrustTokens == nil {
		g.policy.TrustTokens = map[string]time.Time{}
	}
	g.policy.TrustTokens[cmd] = time.Now().Add(ttl)
	return Save(g.projectRoot, g.policy)
}

// AllowCommand adds cmd to the allow-list and persists the policy.
func (g *Guard) AllowCommand(cmd string) error {
	for _, c := range g.policy.AllowedCommands {
		if c == cmd {
			return nil
		}
	}
	g.policy.AllowedCommands = append(g.policy.AllowedCommands, cmd)
	return Save(g.projectRoot, g.policy)
}

// AllowPath adds a glob pattern to the allowed-paths list and persists.
func (g *Guard) AllowPath(pattern string) error {
	for _, p := range g.policy.AllowedPaths {
		if p == pattern {
			return nil
		}
	}
	g.policy.AllowedPaths = append(g.policy.AllowedPaths, pattern)
	return Save(g.projectRoot, g.policy)
}

// Doctor reports the guard's live state for `policy doctor`.
type DoctorReport struct {
	Policy         Policy       `json:"policy"`
	NetworkActive  bool         `json:"network_guard_active"`
	BlockedAttempts int64       `json:"blocked_attempts"`
	OfflineProof   OfflineProof `json:"offline_proof"`
}

func (g *Guard) Doctor() DoctorReport {
	return DoctorReport{
		Policy:          g.policy,
		NetworkActive:   Active(),
		BlockedAttempts: Attempts(),
		OfflineProof:    CurrentOfflineProof(g.policy.NetworkEgress),
	}
}

// MarshalStatus renders the doctor report as indented JSON, as used by
// `policy status`/`policy doctor --json`.
func (r DoctorReport) MarshalStatus() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
