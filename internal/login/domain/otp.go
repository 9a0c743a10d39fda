package domain

import "time"

// OTPPurpose distinguishes why a code was issued. Verification only succeeds
// against a challenge issued for the same purpose.
type OTPPurpose string

const (
	OTPPurposeNewDevice     OTPPurpose = "new_device"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// OTPChallenge is a pending second-factor challenge. Its ID doubles as the
// opaque token a client holds while the login attempt is awaiting a code.
// The plaintext code is never stored, only its fingerprint.
type OTPChallenge struct {
	ID          string // ULID, the challenge token
	AccountID   string
	Email       string
	Purpose     OTPPurpose
	CodeHash    string // SHA-256 fingerprint of the 6-digit code
	Fingerprint string // device fingerprint of the pending login
	DeviceLabel string // optional device name, carried into the trust record
	Attempts    int    // failed verification attempts for this code
	LastSentAt  time.Time
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

// Expired reports whether the challenge can no longer be satisfied.
func (c OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt) || c.ConsumedAt != nil
}
