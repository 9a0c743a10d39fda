package http

import (
	"encoding/json"
	"net/http"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/service"
	"github.com/civicwatch/reportline/pkg/fingerprint"
	"github.com/civicwatch/reportline/pkg/httpx"
	"github.com/civicwatch/reportline/pkg/loginsdk"
	"github.com/civicwatch/reportline/pkg/slogx"
)

// LoginHandler serves the credential step for both portals.
type LoginHandler struct {
	UserPortal  *service.Orchestrator
	AdminPortal *service.Orchestrator
}

// HandleUserLogin handles POST /v1/login.
func (h *LoginHandler) HandleUserLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, h.UserPortal)
}

// HandleAdminLogin handles POST /v1/admin/login.
func (h *LoginHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, h.AdminPortal)
}

func (h *LoginHandler) handleLogin(w http.ResponseWriter, r *http.Request, portal *service.Orchestrator) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginsdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse login request", "err", err)
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	attempt := portal.NewAttempt()
	outcome := attempt.Authenticate(ctx, req.Identifier, req.Password,
		environmentFromWire(req.Environment), req.DeviceLabel)

	writeOutcome(w, outcome)
}

// environmentFromWire maps the request's device attributes onto the
// fingerprint input.
func environmentFromWire(env loginsdk.DeviceEnvironment) fingerprint.Environment {
	return fingerprint.Environment{
		UserAgent:        env.UserAgent,
		Language:         env.Language,
		ColorDepth:       env.ColorDepth,
		ScreenWidth:      env.ScreenWidth,
		ScreenHeight:     env.ScreenHeight,
		TimezoneOffset:   env.TimezoneOffset,
		CookiesEnabled:   env.CookiesEnabled,
		JavaEnabled:      env.JavaEnabled,
		PDFViewerEnabled: env.PDFViewerEnabled,
	}
}

// writeOutcome translates an orchestrator decision into the wire response.
func writeOutcome(w http.ResponseWriter, outcome domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeCompleted:
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, loginsdk.LoginResponse{
			Status: loginsdk.StatusCompleted,
			Session: &loginsdk.SessionPayload{
				Token:     outcome.Session.Token,
				AccountID: outcome.Session.AccountID,
				SessionID: outcome.Session.SessionID,
				ExpiresAt: outcome.Session.ExpiresAt,
			},
		})

	case domain.OutcomeOTPRequired:
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, loginsdk.LoginResponse{
			Status:      loginsdk.StatusOTPRequired,
			ChallengeID: outcome.ChallengeID,
		})

	default:
		writeRejection(w, outcome)
	}
}

func writeRejection(w http.ResponseWriter, outcome domain.Outcome) {
	if outcome.Reason == domain.ReasonAccountBanned {
		writeBanned(w, outcome.Ban)
		return
	}

	apiErr, ok := rejectionErrors[outcome.Reason]
	if !ok {
		loginsdk.ErrServerError.WriteError(w)
		return
	}
	apiErr.WriteError(w)
}

func writeBanned(w http.ResponseWriter, ban *domain.BanContext) {
	body := loginsdk.BannedErrorResponse{
		Code:        loginsdk.ErrorCodeAccountBanned,
		Description: "this account has been banned",
	}
	if ban != nil {
		info := &loginsdk.BanInfo{
			Email:       ban.Email,
			DisplayName: ban.DisplayName,
		}
		for _, report := range ban.OpenReports {
			info.OpenReports = append(info.OpenReports, loginsdk.ModerationReportInfo{
				ID:        report.ID,
				Reason:    report.Reason,
				CreatedAt: report.CreatedAt,
			})
		}
		body.Ban = info
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusForbidden, body)
}

// rejectionErrors maps reject reasons onto wire errors. Retries and
// rejections share codes; the status line tells them apart.
var rejectionErrors = map[domain.RejectReason]*loginsdk.APIError{
	domain.ReasonAccountNotFound: {
		StatusCode:  http.StatusUnauthorized,
		Code:        loginsdk.ErrorCodeAccountNotFound,
		Description: "no account matches that identifier",
	},
	domain.ReasonInvalidCredentials: {
		StatusCode:  http.StatusUnauthorized,
		Code:        loginsdk.ErrorCodeInvalidCredentials,
		Description: "the identifier or password is incorrect",
	},
	domain.ReasonEmailUnconfirmed: {
		StatusCode:  http.StatusForbidden,
		Code:        loginsdk.ErrorCodeEmailUnconfirmed,
		Description: "confirm your email address before logging in",
	},
	domain.ReasonOTPSendFailed: {
		StatusCode:  http.StatusBadGateway,
		Code:        loginsdk.ErrorCodeOTPSendFailed,
		Description: "the verification code could not be delivered",
	},
	domain.ReasonOTPExpired: {
		StatusCode:  http.StatusGone,
		Code:        loginsdk.ErrorCodeOTPExpired,
		Description: "the verification code has expired, log in again",
	},
	domain.ReasonOTPInvalid: {
		StatusCode:  http.StatusBadRequest,
		Code:        loginsdk.ErrorCodeOTPInvalid,
		Description: "the verification code is incorrect",
	},
	domain.ReasonOTPUnknownError: {
		StatusCode:  http.StatusBadRequest,
		Code:        loginsdk.ErrorCodeOTPUnknownError,
		Description: "the verification code could not be verified, log in again",
	},
	domain.ReasonProfileLookupFailed: {
		StatusCode:  http.StatusInternalServerError,
		Code:        loginsdk.ErrorCodeProfileLookupFailed,
		Description: "the account profile could not be loaded",
	},
	domain.ReasonAttemptAbandoned: {
		StatusCode:  http.StatusGone,
		Code:        loginsdk.ErrorCodeOTPExpired,
		Description: "the login attempt was abandoned, log in again",
	},
}
