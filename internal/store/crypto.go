package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations follows the spec's key-derivation parameter: 200,000
// rounds of HMAC-SHA256, matching the cost OWASP recommends for PBKDF2-SHA256.
const pbkdf2Iterations = 200_000

const saltSize = 16 // bytes, stored alongside the database

// keyring derives and holds the symmetric key used for envelope encryption
// of Memory content/tags/metadata columns, plus the key-check HMAC.
type keyring struct {
	key []byte // 32 bytes, AES-256
}

// deriveKeyring derives a 256-bit key from passphrase and salt via PBKDF2-HMAC-SHA256.
func deriveKeyring(passphrase []byte, salt []byte) *keyring {
	key := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, 32, sha256.New)
	return &keyring{key: key}
}

// newSalt generates a fresh random salt for a new database.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// seal encrypts plaintext with AES-256-GCM, prepending a random 96-bit nonce.
// The result is base64-encoded so it round-trips cleanly through TEXT columns.
func (k *keyring) seal(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open decrypts a value produced by seal.
func (k *keyring) open(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrKeyMismatch{}
	}
	return plaintext, nil
}

// keyCheckValue computes an HMAC-SHA256 tag over a fixed marker under the
// derived key. Open stores it base64-encoded (not sealed) on first use; a
// later Open recomputes it and compares the bytes, so the store reports
// KeyMismatch before ever touching row data.
func (k *keyring) keyCheckValue() []byte {
	mac := hmac.New(sha256.New, k.key)
	mac.Write([]byte("memengine-key-check-v1"))
	return mac.Sum(nil)
}

// sealString/openString are convenience wrappers for column values that may be empty.
func (k *keyring) sealString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return k.seal([]byte(s))
}

func (k *keyring) openString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := k.open(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
