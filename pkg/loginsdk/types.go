package loginsdk

import "time"

// DeviceEnvironment carries the client attributes the server fingerprints a
// device from. Clients should fill in everything they can observe; missing
// attributes weaken fingerprint stability, not security.
type DeviceEnvironment struct {
	UserAgent        string `json:"user_agent"`
	Language         string `json:"language"`
	ColorDepth       int    `json:"color_depth"`
	ScreenWidth      int    `json:"screen_width"`
	ScreenHeight     int    `json:"screen_height"`
	TimezoneOffset   int    `json:"timezone_offset"`
	CookiesEnabled   bool   `json:"cookies_enabled"`
	JavaEnabled      bool   `json:"java_enabled"`
	PDFViewerEnabled bool   `json:"pdf_viewer_enabled"`
}

// LoginRequest starts or restarts a login attempt.
type LoginRequest struct {
	// Identifier is the account email or username alias.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`

	// DeviceLabel is an optional human-readable name stored with the trust
	// record ("Sam's laptop").
	DeviceLabel string `json:"device_label,omitempty"`

	Environment DeviceEnvironment `json:"environment"`
}

// Login status values.
const (
	StatusCompleted   = "completed"
	StatusOTPRequired = "otp_required"
)

// SessionPayload is the established session returned on completion.
type SessionPayload struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse is returned by the login and OTP verification endpoints.
// Exactly one of Session or ChallengeID is set, matching Status.
type LoginResponse struct {
	Status      string          `json:"status"`
	Session     *SessionPayload `json:"session,omitempty"`
	ChallengeID string          `json:"challenge_id,omitempty"`
}

// OTPVerifyRequest submits a code for a pending challenge.
type OTPVerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// OTPResendRequest asks for a fresh code on a pending challenge.
type OTPResendRequest struct {
	ChallengeID string `json:"challenge_id"`
}

// ModerationReportInfo is one open report attached to a ban rejection.
type ModerationReportInfo struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// BanInfo accompanies an account_banned error so an external appeal flow has
// the context it needs without another round trip.
type BanInfo struct {
	Email       string                 `json:"email"`
	DisplayName string                 `json:"display_name"`
	OpenReports []ModerationReportInfo `json:"open_reports,omitempty"`
}

// BannedErrorResponse is the error body for account_banned rejections.
type BannedErrorResponse struct {
	Code        string   `json:"error"`
	Description string   `json:"error_description"`
	Ban         *BanInfo `json:"ban,omitempty"`
}

// SessionInfoResponse describes the identity behind a session token.
type SessionInfoResponse struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Online      bool   `json:"online"`
}

// HealthChecks reports per-dependency health in readiness responses.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
