package model

import "time"

// UsageRecord is one audit row per gateway request, written for both
// accepted and rejected calls. KeyHash is the digest of the presented
// key, so rejected calls remain attributable without storing secrets.
type UsageRecord struct {
	ID             string    `json:"id"`
	KeyHash        string    `json:"key_hash"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	CallerIP       string    `json:"caller_ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	ResponseStatus int       `json:"response_status"`
	CreatedAt      time.Time `json:"created_at"`
}
