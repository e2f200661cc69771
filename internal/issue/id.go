package issue

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultPrefix is the id prefix used when none is configured.
const DefaultPrefix = "wv"

// GenerateID creates a random id like wv-3fa9: the prefix plus four
// hex chars from two bytes of entropy. The generator never checks
// uniqueness; callers verify against the existing id set.
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("issue: generate id: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b), nil
}
