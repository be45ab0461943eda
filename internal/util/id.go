package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a short random hex token, used for request correlation ids.
func NewID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
