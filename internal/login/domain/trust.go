package domain

import "time"

// TrustedDevice relates an (account, fingerprint) pair to a trust decision.
// Rows are written by idempotent upsert only, so concurrent completions from
// two devices resolve last-write-wins.
type TrustedDevice struct {
	ID          string
	AccountID   string
	Fingerprint string
	Label       string // optional human-readable device label
	Trusted     bool
	LastUsedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
