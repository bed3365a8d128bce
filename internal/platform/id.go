package platform

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.New().String()
}

// NewSecret returns a hex-encoded random secret of n bytes entropy.
// Panics if the system entropy source is unavailable.
func NewSecret(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return hex.EncodeToString(b)
}
