package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// IDLength is the number of hex characters kept from the email digest.
// Existing profile directories are named with it, so it must not change.
const IDLength = 16

// DeriveID maps an email to its session identifier. The email is hashed
// as given, without trimming or case folding.
func DeriveID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])[:IDLength]
}
