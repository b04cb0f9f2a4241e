package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMAC produces keyed SHA-256 digests of short secrets such as one-time codes.
type HMAC struct {
	key []byte
}

func NewHMAC(key string) *HMAC {
	return &HMAC{key: []byte(key)}
}

// Hash returns the hex-encoded digest of value.
func (h *HMAC) Hash(value string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether value hashes to hashed, in constant time.
func (h *HMAC) Equal(hashed, value string) bool {
	return hmac.Equal([]byte(hashed), []byte(h.Hash(value)))
}
