// Package webhook delivers signed event payloads to registered
// endpoints and records every attempt in the delivery log.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SignatureHeader carries the payload signature on outbound requests.
	SignatureHeader = "X-Gateway-Signature"
	// EventHeader carries the event type on outbound requests.
	EventHeader = "X-Gateway-Event"

	signatureScheme = "sha256"
)

// Sign computes the HMAC-SHA256 signature of body under secret, in the
// "sha256=<hex>" header format. The signature covers the exact bytes
// sent on the wire.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signatureScheme + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received header value against the body and
// secret using a constant-time comparison. Receivers can use this to
// authenticate deliveries.
func VerifySignature(secret string, body []byte, header string) bool {
	scheme, sigHex, ok := strings.Cut(header, "=")
	if !ok || scheme != signatureScheme {
		return false
	}
	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
