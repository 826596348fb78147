package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// Receipt is the structured per-command audit record required by every
// invocation, regardless of the command's verdict.
type Receipt struct {
	ID            string            `json:"id"`
	Command       string            `json:"command"`
	Timestamp     time.Time         `json:"timestamp"`
	ArgvDigest    string            `json:"argv_digest"`
	AffectedHashes []string         `json:"affected_hashes,omitempty"`
	Verdict       Verdict           `json:"verdict"`
	RemediationHint string          `json:"remediation_hint,omitempty"`
	OfflineProof  *OfflineProof     `json:"offline_proof,omitempty"`
	Error         *ReceiptError     `json:"error,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`
}

// ReceiptError embeds the structured error reported on a failed command.
type ReceiptError struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OfflineProof is the record prove-offline returns and every receipt
// carries, attesting the network guard's live state during the command.
type OfflineProof struct {
	PolicyNetworkEgress string `json:"policyNetworkEgress"` // "blocked" | "allowed"
	NetworkGuardActive  bool   `json:"networkGuardActive"`
	ProxiesPresent      bool   `json:"proxiesPresent"`
}

// CurrentOfflineProof snapshots the live guard state plus the host's proxy
// environment variables (a live proxy does not itself defeat the guard,
// but its presence is reported for operator visibility).
func CurrentOfflineProof(networkEgressAllowed bool) OfflineProof {
	verdict := "blocked"
	if networkEgressAllowed {
		verdict = "allowed"
	}
	proxiesPresent := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	return OfflineProof{
		PolicyNetworkEgress: verdict,
		NetworkGuardActive:  Active(),
		ProxiesPresent:      proxiesPresent,
	}
}

// receiptsDir returns <project_root>/.store/receipts, creating it if absent.
func receiptsDir(projectRoot string) (string, error) {
	dir := filepath.Join(projectRoot, ".store", "receipts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", engerrors.InternalError("failed to create receipts directory", err)
	}
	return dir, nil
}

// WriteReceipt persists a Receipt as <timestamp>-<uuid>.json under
// .store/receipts/. Receipt file names are monotonic and unique, so no
// locking is required for concurrent readers.
func WriteReceipt(projectRoot string, r Receipt) error {
	dir, err := receiptsDir(projectRoot)
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	name := fmt.Sprintf("%s-%s.json", r.Timestamp.UTC().Format("20060102T150405.000000000Z"), r.ID)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return engerrors.InternalError("failed to marshal receipt", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return engerrors.InternalError("failed to create receipt file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return engerrors.InternalError("failed to write receipt", err)
	}
	return f.Sync()
}
