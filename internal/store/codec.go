package store

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"crypto/sha256"
	"math"
)

// sha256Hex returns the lowercase hex SHA-256 digest of s, used for Memory
// content_hash values.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func encodeSalt(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeSalt(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// float32sToBytes packs a vector into a little-endian byte blob for BLOB storage.
func float32sToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32s unpacks a blob written by float32sToBytes.
func bytesToFloat32s(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
