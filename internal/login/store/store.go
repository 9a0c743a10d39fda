package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Accounts() Accounts
	TrustedDevices() TrustedDevices
	OTPChallenges() OTPChallenges
	ActivityLog() ActivityLog
	Reports() Reports

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store scoped to one transaction.
type Tx interface {
	Accounts() Accounts
	TrustedDevices() TrustedDevices
	OTPChallenges() OTPChallenges
	ActivityLog() ActivityLog
	Reports() Reports
}

type Accounts interface {
	// GetByID returns an account by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail returns an account by its email address.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetByIdentifier resolves either an email or a username alias to the
	// account it belongs to. Identifier matching is case-insensitive.
	GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error)

	// Create inserts a new account (id provided by app via ULID).
	Create(ctx context.Context, a domain.Account) error

	// UpdateActivity sets the last-active timestamp and online flag.
	UpdateActivity(ctx context.Context, email string, lastActiveAt time.Time, online bool) error

	// UpdateStatus mutates the moderation status.
	UpdateStatus(ctx context.Context, accountID string, status domain.Status) error

	// ResetStaleOnline clears the online flag for accounts whose last
	// activity is older than the cutoff. Housekeeping.
	ResetStaleOnline(ctx context.Context, cutoff time.Time) (int64, error)
}

type TrustedDevices interface {
	// Get returns the trust record for an (account, fingerprint) pair.
	Get(ctx context.Context, accountID, fingerprint string) (domain.TrustedDevice, error)

	// Upsert creates or refreshes a trust record keyed on the
	// (account, fingerprint) pair. Idempotent; last write wins.
	Upsert(ctx context.Context, td domain.TrustedDevice) error

	// Touch refreshes last_used_at for an existing record.
	Touch(ctx context.Context, accountID, fingerprint string, usedAt time.Time) error

	// ListForAccount returns all trust records for an account, newest first.
	ListForAccount(ctx context.Context, accountID string) ([]domain.TrustedDevice, error)

	// Revoke flips the trusted flag off without deleting the row.
	Revoke(ctx context.Context, accountID, fingerprint string) error
}

type OTPChallenges interface {
	// Create stores a freshly issued challenge.
	Create(ctx context.Context, c domain.OTPChallenge) error

	// Get fetches a challenge by its token regardless of expiry; callers
	// classify staleness themselves.
	Get(ctx context.Context, id string) (domain.OTPChallenge, error)

	// Refresh replaces the code hash, expiry and send time of an open
	// challenge and resets its attempt counter (used by resend).
	Refresh(ctx context.Context, id, codeHash string, lastSentAt, expiresAt time.Time) error

	// IncrementAttempts bumps the failed attempt counter and returns the
	// updated challenge.
	IncrementAttempts(ctx context.Context, id string) (domain.OTPChallenge, error)

	// MarkConsumed stamps the challenge as used so it cannot be replayed.
	MarkConsumed(ctx context.Context, id string, at time.Time) error

	// Delete removes a challenge (cancel or forced closure).
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes all challenges past their expiry. Housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ActivityLog interface {
	// Record appends an audit entry.
	Record(ctx context.Context, e domain.ActivityEntry) error

	// ListForEmail returns recent entries for an email, newest first.
	ListForEmail(ctx context.Context, email string, limit int) ([]domain.ActivityEntry, error)
}

type Reports interface {
	// ListOpenForAccount returns unresolved moderation reports for an
	// account, newest first. Consumed only by the ban-context path.
	ListOpenForAccount(ctx context.Context, accountID string) ([]domain.ModerationReport, error)

	// Create inserts a moderation report (used by fixtures and tooling).
	Create(ctx context.Context, r domain.ModerationReport) error
}
