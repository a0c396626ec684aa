// Package util holds small helpers shared across the schemarecall packages.
package util

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewRecordID returns a fresh random 128-bit identifier in canonical UUID form.
func NewRecordID() string {
	return uuid.NewString()
}

// IsRecordID reports whether s parses as a record identifier.
func IsRecordID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ContentHash returns a short stable fingerprint of text, used to correlate
// log lines for the same payload without logging the payload itself.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
