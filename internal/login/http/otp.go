package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/service"
	"github.com/civicwatch/reportline/pkg/loginsdk"
	"github.com/civicwatch/reportline/pkg/slogx"
)

// OTPHandler serves the second-factor step. Challenges are portal-agnostic on
// the wire; the handler routes each one to the portal matching the account's
// role so completions land in the right place.
type OTPHandler struct {
	UserPortal  *service.Orchestrator
	AdminPortal *service.Orchestrator
}

// HandleVerify handles POST /v1/login/otp.
func (h *OTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginsdk.OTPVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse otp verify request", "err", err)
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.ChallengeID == "" {
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	attempt, ok := h.resume(w, r, req.ChallengeID)
	if !ok {
		return
	}

	outcome, err := attempt.SubmitOTP(ctx, req.Code)
	if err != nil {
		log.Error("otp submission failed", "challenge_id", req.ChallengeID, "err", err)
		loginsdk.ErrServerError.WriteError(w)
		return
	}

	writeOutcome(w, outcome)
}

// HandleResend handles POST /v1/login/otp/resend.
func (h *OTPHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginsdk.OTPResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse otp resend request", "err", err)
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.ChallengeID == "" {
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	attempt, ok := h.resume(w, r, req.ChallengeID)
	if !ok {
		return
	}

	if err := attempt.ResendOTP(ctx); err != nil {
		switch {
		case errors.Is(err, service.ErrResendCooldown):
			loginsdk.ErrResendCooldown.WriteError(w)
		case errors.Is(err, service.ErrOTPExpired):
			rejectionErrors[domain.ReasonOTPExpired].WriteError(w)
		default:
			log.Error("otp resend failed", "challenge_id", req.ChallengeID, "err", err)
			rejectionErrors[domain.ReasonOTPSendFailed].WriteError(w)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resume rebuilds the pending attempt for a challenge and picks the portal
// matching the account's role. Writes the error response itself on failure.
func (h *OTPHandler) resume(w http.ResponseWriter, r *http.Request, challengeID string) (*service.Attempt, bool) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	attempt, err := h.UserPortal.ResumeAttempt(ctx, challengeID)
	if err != nil {
		if errors.Is(err, service.ErrOTPExpired) {
			rejectionErrors[domain.ReasonOTPExpired].WriteError(w)
		} else {
			log.Error("failed to resume login attempt", "challenge_id", challengeID, "err", err)
			loginsdk.ErrServerError.WriteError(w)
		}
		return nil, false
	}

	if h.AdminPortal != nil && attempt.Account().Role == domain.RoleAdmin {
		attempt, err = h.AdminPortal.ResumeAttempt(ctx, challengeID)
		if err != nil {
			log.Error("failed to resume admin login attempt", "challenge_id", challengeID, "err", err)
			loginsdk.ErrServerError.WriteError(w)
			return nil, false
		}
	}

	return attempt, true
}
