// Package hashing produces the SHA-256 digests the Conversions API expects
// for identity matching parameters.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash lowercases and trims v and returns its SHA-256 digest as lowercase
// hex. Empty input (after trimming) has no digest.
func Hash(v string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), true
}

// Normalized applies normalize to v and hashes the result. A normalizer that
// reports no value yields no digest.
func Normalized(v string, normalize func(string) (string, bool)) (string, bool) {
	if normalize != nil {
		n, ok := normalize(v)
		if !ok {
			return "", false
		}
		v = n
	}
	return Hash(v)
}
