package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room for an algorithm migration without colliding with old IDs.
const (
	DomainRevision = "loom/revision/v1"
	DomainBuildKey = "loom/buildkey/v1"
	DomainClosure  = "loom/closure/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonicalizes v and returns the domain-separated digest as
// "sha256:<hex>". Returns an error if v has no canonical form.
func Hash(domain string, v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize for %s: %w", domain, err)
	}
	return "sha256:" + hashWithDomain(domain, b), nil
}

// MustHash is like Hash but panics on error. Use only in tests or when
// inputs are known to be canonicalizable.
func MustHash(domain string, v any) string {
	id, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return id
}
