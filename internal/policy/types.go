// Package policy implements the guard that wraps every command: an
// allow-list check for commands and paths, a process-wide network
// interceptor that refuses outbound connections, and the append-only
// receipt/journal audit trail those checks write to.
package policy

import "time"

// Policy is the persisted allow-list configuration, stored at
// <project_root>/.store/policy.json.
type Policy struct {
	AllowedCommands []string               `json:"allowed_commands"`
	AllowedPaths    []string               `json:"allowed_paths"` // glob patterns
	NetworkEgress   bool                   `json:"network_egress"`
	TrustTokens     map[string]time.Time   `json:"trust_tokens"` // command -> expiry
}

// DefaultPolicy returns the conservative starting policy: every documented
// command is allowed, the project root (and below) is allowed, and network
// egress is refused.
func DefaultPolicy(projectRoot string) Policy {
	return Policy{
		AllowedCommands: []string{
			"init", "status", "remember", "recall", "search",
			"index-code", "reindex-file", "reindex-folder",
			"gc", "db-doctor", "export-context", "import-context",
			"prove-offline", "policy",
		},
		AllowedPaths:  []string{projectRoot + "/**"},
		NetworkEgress: false,
		TrustTokens:   map[string]time.Time{},
	}
}

// Verdict is the outcome of a guard check.
type Verdict string

const (
	VerdictAllowed Verdict = "allowed"
	VerdictBlocked Verdict = "blocked"
)

// CommandAllowed reports whether cmd is in the allow-list or carries an
// unexpired trust token.
func (p Policy) CommandAllowed(cmd string, now time.Time) bool {
	for _, c := range p.AllowedCommands {
		if c == cmd {
			return true
		}
	}
	if expiry, ok := p.TrustTokens[cmd]; ok {
		return now.Before(expiry)
	}
	return false
}
