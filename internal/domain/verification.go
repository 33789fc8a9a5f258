package domain

import "time"

// OTPRecord is the single active verification code for an email address.
// PK: email. PurgeAt is a Unix timestamp used as the storage TTL; it lies past
// ExpiresAt so an expired code can still be reported as expired.
type OTPRecord struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	PurgeAt   int64     `json:"purge_at" dynamodbav:"purge_at"` // TTL (Unix seconds)
}

// Expired reports whether the code is past its expiry at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
