package domain

import "time"

// Role classifies which portal an account belongs to.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status is the moderation status of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

// Account is the profile record behind a login identity. Credentials are
// verified against PasswordHash by the credential service only; nothing else
// reads it.
type Account struct {
	ID               string
	Email            string
	Username         string // optional secondary alias, may be empty
	DisplayName      string
	PasswordHash     string // argon2id PHC encoded
	Role             Role
	Status           Status
	EmailConfirmedAt *time.Time
	LastActiveAt     *time.Time
	Online           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Banned reports whether the account must never reach session completion.
func (a Account) Banned() bool { return a.Status == StatusBanned }

// Session is the signed token handed to a client once a login decision
// completes. The orchestrator only ever decides to keep or discard it.
type Session struct {
	Token     string
	AccountID string
	SessionID string
	ExpiresAt time.Time
}

// ModerationReport is the slice of the moderation subsystem that the login
// flow surfaces with a ban rejection, so an external appeal flow has context.
type ModerationReport struct {
	ID        string
	AccountID string
	Reason    string
	Status    string // "open" or "resolved"
	CreatedAt time.Time
}

// BanContext accompanies an AccountBanned rejection.
type BanContext struct {
	Email       string
	DisplayName string
	OpenReports []ModerationReport
}
