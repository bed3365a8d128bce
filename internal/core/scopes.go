package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Resources exposed through the gateway and the actions on them. A
// scope string is "<resource>:<action>"; "*:*" is the bootstrap
// wildcard granted to platform keys created from the CLI.
var knownScopes = map[string]bool{
	"projects:read":   true,
	"projects:write":  true,
	"estimates:read":  true,
	"estimates:write": true,
	"invoices:read":   true,
	"invoices:write":  true,
	"*:*":             true,
}

// ValidScope reports whether s names a known resource-action pair.
func ValidScope(s string) bool {
	return knownScopes[s]
}

// HasScope checks whether scopes grants the required resource:action
// pair, either exactly or via the wildcard.
func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == "*:*" || s == required {
			return true
		}
	}
	return false
}

// HashKey computes the sha256 digest of a raw key for storage lookup.
func HashKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}
