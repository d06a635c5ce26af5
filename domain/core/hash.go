package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// ParseHash validates a 64-character hex digest as produced by NewHash
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != sha256.Size*2 {
		return "", NewInvalidArgumentError("fingerprint", fmt.Sprintf("must be %d hex characters, got %d", sha256.Size*2, len(s)))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", NewInvalidArgumentError("fingerprint", "is not hexadecimal")
	}
	return Hash(s), nil
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ComputeParameterHash hashes a parameter map independent of key order.
func ComputeParameterHash(params map[string]interface{}) Hash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}

	return NewHash([]byte(data.String()))
}

// CombineHashes folds several hashes into one, order-sensitive.
func CombineHashes(parts ...Hash) Hash {
	var data strings.Builder
	for _, p := range parts {
		data.WriteString(string(p))
		data.WriteString("|")
	}
	return NewHash([]byte(data.String()))
}
