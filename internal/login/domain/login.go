package domain

// LoginState is the explicit state of one login attempt. The original UI
// flow tracked this with a scatter of booleans; here it is a single value
// with a defined transition function (see service.Attempt).
type LoginState string

const (
	StateIdle                  LoginState = "idle"
	StateValidatingCredentials LoginState = "validating_credentials"
	StateCheckingTrust         LoginState = "checking_trust"
	StateAwaitingOTP           LoginState = "awaiting_otp"
	StateVerifyingOTP          LoginState = "verifying_otp"
	StateSessionComplete       LoginState = "session_complete"
	StateRejected              LoginState = "rejected"
)

// Terminal reports whether the state ends the attempt.
func (s LoginState) Terminal() bool {
	return s == StateSessionComplete || s == StateRejected
}

// RejectReason is the error taxonomy surfaced to callers. Values are stable
// wire strings.
type RejectReason string

const (
	ReasonAccountNotFound     RejectReason = "account_not_found"
	ReasonAccountBanned       RejectReason = "account_banned"
	ReasonInvalidCredentials  RejectReason = "invalid_credentials"
	ReasonEmailUnconfirmed    RejectReason = "email_unconfirmed"
	ReasonOTPSendFailed       RejectReason = "otp_send_failed"
	ReasonOTPExpired          RejectReason = "otp_expired"
	ReasonOTPInvalid          RejectReason = "otp_invalid"
	ReasonOTPUnknownError     RejectReason = "otp_verification_unknown_error"
	ReasonProfileLookupFailed RejectReason = "profile_lookup_failed"
	ReasonAttemptAbandoned    RejectReason = "attempt_abandoned"
)

// OutcomeKind is the top-level result of an orchestrator operation.
type OutcomeKind string

const (
	OutcomeCompleted   OutcomeKind = "completed"
	OutcomeOTPRequired OutcomeKind = "otp_required"
	OutcomeRetry       OutcomeKind = "retry"
	OutcomeRejected    OutcomeKind = "rejected"
)

// Outcome is the single decision returned by Authenticate and SubmitOTP.
type Outcome struct {
	Kind        OutcomeKind
	Reason      RejectReason // set for retry and rejected
	Session     Session      // set when Kind == OutcomeCompleted
	ChallengeID string       // set when Kind == OutcomeOTPRequired
	Ban         *BanContext  // set when Reason == ReasonAccountBanned
}

// Completed reports whether the attempt finished with an established session.
func (o Outcome) Completed() bool { return o.Kind == OutcomeCompleted }
