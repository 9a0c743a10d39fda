package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/metrics"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/fingerprint"
	"github.com/civicwatch/reportline/pkg/slogx"
)

const (
	// DefaultResendCooldown is the client-side resend window the
	// orchestrator enforces regardless of server-side throttling.
	DefaultResendCooldown = 60 * time.Second

	// DefaultCallTimeout bounds every collaborator call so a slow backend
	// surfaces as a transient failure instead of a hang.
	DefaultCallTimeout = 15 * time.Second
)

var (
	ErrNotAwaitingOTP = errors.New("login: attempt is not awaiting an OTP")
	ErrResendCooldown = errors.New("login: resend cooldown has not elapsed")
)

var otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Orchestrator sequences credential check, trust lookup and OTP challenge
// into a single login decision. One orchestrator serves one portal; the admin
// and user portals are two instances of the same component with a different
// role predicate.
type Orchestrator struct {
	Credentials *CredentialService
	Trust       *TrustService
	OTP         *OTPService
	Activity    *ActivityService
	Store       store.Store

	// Portal names the call site for logs and metrics ("user", "admin").
	Portal string

	// Purpose stamps issued OTP challenges.
	Purpose domain.OTPPurpose

	// AllowRole gates which roles may log in through this portal.
	// nil allows every role.
	AllowRole func(domain.Role) bool

	// SessionReady is invoked exactly once per completed attempt, after the
	// session is finalized. Optional.
	SessionReady func(domain.Account, domain.Session)

	ResendCooldown time.Duration // 0 means DefaultResendCooldown
	CallTimeout    time.Duration // 0 means DefaultCallTimeout
}

// Attempt is one login attempt walking the state machine. Not safe to share
// between goroutines except through its methods.
type Attempt struct {
	orch *Orchestrator

	mu          sync.Mutex
	state       domain.LoginState
	epoch       uint64 // bumped on cancel; guards stale completions
	account     domain.Account
	fp          string
	deviceLabel string
	challengeID string
	lastSend    time.Time
	finalized   bool
}

// NewAttempt starts a fresh attempt in the Idle state.
func (o *Orchestrator) NewAttempt() *Attempt {
	return &Attempt{orch: o, state: domain.StateIdle}
}

// ResumeAttempt rebuilds an AwaitingOtp attempt from a stored challenge so
// stateless callers (the HTTP layer) can continue a pending login.
func (o *Orchestrator) ResumeAttempt(ctx context.Context, challengeID string) (*Attempt, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	challenge, err := o.Store.OTPChallenges().Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, err
	}
	if challenge.Purpose != o.Purpose || challenge.Expired(time.Now()) {
		return nil, ErrOTPExpired
	}

	account, err := o.Store.Accounts().GetByID(ctx, challenge.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, err
	}

	return &Attempt{
		orch:        o,
		state:       domain.StateAwaitingOTP,
		account:     account,
		fp:          challenge.Fingerprint,
		deviceLabel: challenge.DeviceLabel,
		challengeID: challenge.ID,
		lastSend:    challenge.LastSentAt,
	}, nil
}

// State returns the attempt's current state.
func (a *Attempt) State() domain.LoginState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ChallengeID returns the pending challenge token, if any.
func (a *Attempt) ChallengeID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.challengeID
}

// Account returns the resolved account once credentials have been accepted;
// the zero Account before that.
func (a *Attempt) Account() domain.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account
}

// Authenticate decides, for one submission of identifier+password, whether
// the login completes immediately (trusted device) or requires an OTP.
//
// The ban check runs exactly once, after identifier resolution and before
// password verification; trust and OTP logic are never reached for banned
// accounts.
func (a *Attempt) Authenticate(ctx context.Context, identifier, password string, env fingerprint.Environment, deviceLabel string) domain.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	o := a.orch
	log := slogx.FromContext(ctx)

	// A terminal attempt restarts cleanly from Idle.
	a.reset(ctx)
	a.state = domain.StateValidatingCredentials
	a.deviceLabel = deviceLabel

	// Input validation happens before any external call and leaves no
	// side effects behind.
	if identifier == "" || password == "" {
		return a.reject(domain.ReasonInvalidCredentials, nil)
	}

	cctx, cancel := o.callContext(ctx)
	defer cancel()

	// Resolve identifier (email or username alias) to the account.
	account, err := o.Store.Accounts().GetByIdentifier(cctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return a.reject(domain.ReasonAccountNotFound, nil)
		}
		log.Error("identifier resolution failed", "err", err)
		return a.reject(domain.ReasonAccountNotFound, nil)
	}

	if account.Banned() {
		return a.reject(domain.ReasonAccountBanned, o.banContext(cctx, account))
	}

	if o.AllowRole != nil && !o.AllowRole(account.Role) {
		// Wrong portal; don't leak that the account exists elsewhere.
		return a.reject(domain.ReasonInvalidCredentials, nil)
	}

	session, err := o.Credentials.SignIn(cctx, account.Email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailUnconfirmed):
			return a.reject(domain.ReasonEmailUnconfirmed, nil)
		case errors.Is(err, ErrAccountNotFound):
			return a.reject(domain.ReasonAccountNotFound, nil)
		default:
			return a.reject(domain.ReasonInvalidCredentials, nil)
		}
	}

	// Credentials accepted; only now is the device identified.
	a.state = domain.StateCheckingTrust
	a.account = account
	a.fp = fingerprint.Compute(env)

	if o.Trust.IsTrusted(cctx, account.ID, a.fp) {
		if err := o.Trust.Touch(cctx, account.ID, a.fp); err != nil {
			log.Warn("trust refresh failed", "account_id", account.ID, "err", err)
		}
		a.finalize(cctx, session)
		a.state = domain.StateSessionComplete
		metrics.LoginOutcomes.WithLabelValues(o.Portal, "completed").Inc()
		return domain.Outcome{Kind: domain.OutcomeCompleted, Session: session}
	}

	// Untrusted device: never leave an authenticated session outstanding
	// while the OTP is pending.
	o.Credentials.SignOut(cctx, session.Token)

	challengeID, err := o.OTP.Send(cctx, account.ID, account.Email, o.Purpose, a.fp, a.deviceLabel)
	if err != nil {
		log.Error("otp send failed", "email", account.Email, "err", err)
		return a.reject(domain.ReasonOTPSendFailed, nil)
	}
	metrics.OTPSent.WithLabelValues(string(o.Purpose)).Inc()

	a.state = domain.StateAwaitingOTP
	a.challengeID = challengeID
	a.lastSend = time.Now()
	metrics.LoginOutcomes.WithLabelValues(o.Portal, "otp_required").Inc()
	return domain.Outcome{Kind: domain.OutcomeOTPRequired, ChallengeID: challengeID}
}

// SubmitOTP verifies a submitted code for an attempt in AwaitingOtp.
//
// The verification call runs without the attempt lock so a user may cancel
// while it is in flight; a completion whose epoch no longer matches is
// discarded rather than applied to an abandoned attempt.
func (a *Attempt) SubmitOTP(ctx context.Context, code string) (domain.Outcome, error) {
	a.mu.Lock()
	if a.state != domain.StateAwaitingOTP {
		a.mu.Unlock()
		return domain.Outcome{}, ErrNotAwaitingOTP
	}

	// Non-conforming input never reaches the OTP service.
	if !otpCodePattern.MatchString(code) {
		a.mu.Unlock()
		return domain.Outcome{Kind: domain.OutcomeRetry, Reason: domain.ReasonOTPInvalid}, nil
	}

	o := a.orch
	epoch := a.epoch
	challengeID := a.challengeID
	a.state = domain.StateVerifyingOTP
	a.mu.Unlock()

	log := slogx.FromContext(ctx)
	cctx, cancel := o.callContext(ctx)
	defer cancel()

	challenge, verr := o.OTP.Verify(cctx, challengeID, code)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.epoch != epoch {
		// The user abandoned the attempt while verification was in flight.
		// A late success must not finalize a session nobody is waiting for.
		metrics.OTPVerifications.WithLabelValues("abandoned").Inc()
		return domain.Outcome{Kind: domain.OutcomeRejected, Reason: domain.ReasonAttemptAbandoned}, nil
	}

	if verr != nil {
		switch {
		case errors.Is(verr, ErrOTPInvalid):
			// Challenge still open; back to awaiting.
			a.state = domain.StateAwaitingOTP
			metrics.OTPVerifications.WithLabelValues("invalid").Inc()
			return domain.Outcome{Kind: domain.OutcomeRetry, Reason: domain.ReasonOTPInvalid}, nil
		case errors.Is(verr, ErrOTPExpired):
			metrics.OTPVerifications.WithLabelValues("expired").Inc()
			return a.rejectLocked(domain.ReasonOTPExpired), nil
		case errors.Is(verr, ErrOTPForbidden):
			metrics.OTPVerifications.WithLabelValues("forbidden").Inc()
			return a.rejectLocked(domain.ReasonOTPUnknownError), nil
		default:
			// Transport/unknown error: challenge stays open, generic retry.
			log.Error("otp verification failed", "challenge_id", challengeID, "err", verr)
			a.state = domain.StateAwaitingOTP
			metrics.OTPVerifications.WithLabelValues("unknown").Inc()
			return domain.Outcome{Kind: domain.OutcomeRetry, Reason: domain.ReasonOTPUnknownError}, nil
		}
	}

	// Code accepted: re-fetch the current identity before establishing the
	// session. A confirmed credential with no profile row is a
	// configuration error and must not silently proceed.
	account, err := o.Store.Accounts().GetByEmail(cctx, challenge.Email)
	if err != nil {
		log.Error("profile lookup after otp failed", "email", challenge.Email, "err", err)
		return a.rejectLocked(domain.ReasonProfileLookupFailed), nil
	}
	if account.Banned() {
		// Moderation acted while the code was in transit.
		return a.rejectLocked(domain.ReasonAccountBanned), nil
	}

	session, err := o.Credentials.IssueSession(cctx, account)
	if err != nil {
		log.Error("session issue after otp failed", "email", challenge.Email, "err", err)
		return a.rejectLocked(domain.ReasonProfileLookupFailed), nil
	}

	if err := o.Trust.UpsertTrusted(cctx, account.ID, a.fp, a.deviceLabel); err != nil {
		// Trust persistence is best-effort; the login already succeeded.
		log.Warn("trust persistence failed", "account_id", account.ID, "err", err)
	}

	a.account = account
	a.finalize(cctx, session)
	a.state = domain.StateSessionComplete
	metrics.OTPVerifications.WithLabelValues("completed").Inc()
	metrics.LoginOutcomes.WithLabelValues(o.Portal, "completed").Inc()
	return domain.Outcome{Kind: domain.OutcomeCompleted, Session: session}, nil
}

// ResendOTP re-sends the code for the open challenge, enforcing the
// client-side cooldown window independently of server throttling.
func (a *Attempt) ResendOTP(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != domain.StateAwaitingOTP {
		return ErrNotAwaitingOTP
	}

	o := a.orch
	cooldown := o.ResendCooldown
	if cooldown == 0 {
		cooldown = DefaultResendCooldown
	}
	if time.Since(a.lastSend) < cooldown {
		return ErrResendCooldown
	}

	cctx, cancel := o.callContext(ctx)
	defer cancel()

	if err := o.OTP.Resend(cctx, a.challengeID); err != nil {
		return err
	}
	metrics.OTPSent.WithLabelValues(string(o.Purpose)).Inc()
	a.lastSend = time.Now()
	return nil
}

// Cancel abandons the attempt. It reports false when the attempt had already
// completed, so callers don't show a "cancelled" message for a login that
// actually succeeded moments earlier.
func (a *Attempt) Cancel(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == domain.StateSessionComplete {
		return false
	}

	a.epoch++
	if a.challengeID != "" {
		cctx, cancel := a.orch.callContext(ctx)
		defer cancel()
		_ = a.orch.Store.OTPChallenges().Delete(cctx, a.challengeID)
	}
	a.challengeID = ""
	a.state = domain.StateRejected
	return true
}

// finalize performs the session-complete side effects exactly once per
// attempt: activity stamp, audit entry, ready signal. All best-effort except
// the signal itself. Callers hold the lock.
func (a *Attempt) finalize(ctx context.Context, session domain.Session) {
	if a.finalized {
		return
	}
	a.finalized = true

	o := a.orch
	log := slogx.FromContext(ctx)

	if err := o.Store.Accounts().UpdateActivity(ctx, a.account.Email, time.Now(), true); err != nil {
		log.Warn("activity update failed", "email", a.account.Email, "err", err)
	}
	if err := o.Activity.RecordLogin(ctx, a.account.Email); err != nil {
		log.Warn("login audit record failed", "email", a.account.Email, "err", err)
	}
	if o.SessionReady != nil {
		o.SessionReady(a.account, session)
	}
}

// banContext gathers what an external appeal flow needs. Report lookup is
// best-effort; a ban rejection never depends on the moderation subsystem
// being reachable.
func (o *Orchestrator) banContext(ctx context.Context, account domain.Account) *domain.BanContext {
	bc := &domain.BanContext{
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}

	reports, err := o.Store.Reports().ListOpenForAccount(ctx, account.ID)
	if err != nil {
		slogx.FromContext(ctx).Warn("ban report lookup failed", "account_id", account.ID, "err", err)
		return bc
	}
	bc.OpenReports = reports
	return bc
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := o.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// reset returns a terminal attempt to Idle so the next submission starts
// clean. An abandoned open challenge is closed rather than left verifiable
// until housekeeping sweeps it. Callers hold the lock.
func (a *Attempt) reset(ctx context.Context) {
	if a.challengeID != "" {
		cctx, cancel := a.orch.callContext(ctx)
		defer cancel()
		_ = a.orch.Store.OTPChallenges().Delete(cctx, a.challengeID)
	}
	a.state = domain.StateIdle
	a.account = domain.Account{}
	a.fp = ""
	a.challengeID = ""
	a.finalized = false
}

func (a *Attempt) reject(reason domain.RejectReason, ban *domain.BanContext) domain.Outcome {
	a.state = domain.StateRejected
	metrics.LoginOutcomes.WithLabelValues(a.orch.Portal, "rejected").Inc()
	return domain.Outcome{Kind: domain.OutcomeRejected, Reason: reason, Ban: ban}
}

func (a *Attempt) rejectLocked(reason domain.RejectReason) domain.Outcome {
	a.state = domain.StateRejected
	metrics.LoginOutcomes.WithLabelValues(a.orch.Portal, "rejected").Inc()
	return domain.Outcome{Kind: domain.OutcomeRejected, Reason: reason}
}
