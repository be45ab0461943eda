// Package fingerprint derives content identifiers for uploaded binaries.
package fingerprint

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrDigestUnavailable is returned when the SHA-256 primitive is not linked
// into the binary. Callers must abort the upload rather than proceed with a
// weaker identity.
var ErrDigestUnavailable = errors.New("sha-256 digest unavailable in this build")

// Compute returns the lowercase hex SHA-256 digest of data. The same bytes
// always produce the same fingerprint, on any machine.
func Compute(data []byte) (string, error) {
	if !crypto.SHA256.Available() {
		return "", ErrDigestUnavailable
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
