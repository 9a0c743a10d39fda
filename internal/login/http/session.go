package http

import (
	"net/http"
	"strings"

	"github.com/civicwatch/reportline/internal/login/service"
	"github.com/civicwatch/reportline/pkg/httpx"
	"github.com/civicwatch/reportline/pkg/loginsdk"
	"github.com/civicwatch/reportline/pkg/slogx"
)

// SessionHandler serves session introspection and logout.
type SessionHandler struct {
	Credentials *service.CredentialService
	Activity    *service.ActivityService
}

// HandleCurrent handles GET /v1/session.
func (h *SessionHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := bearerToken(r)
	if !ok {
		loginsdk.ErrInvalidToken.WriteError(w)
		return
	}

	account, err := h.Credentials.CurrentIdentity(ctx, token)
	if err != nil {
		loginsdk.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginsdk.SessionInfoResponse{
		AccountID:   account.ID,
		Email:       account.Email,
		Username:    account.Username,
		DisplayName: account.DisplayName,
		Role:        string(account.Role),
		Online:      account.Online,
	})
}

// HandleLogout handles POST /v1/logout. Idempotent: an invalid or already
// expired token still yields 204.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token, ok := bearerToken(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	account, err := h.Credentials.CurrentIdentity(ctx, token)
	if err == nil {
		if err := h.Activity.RecordLogout(ctx, account.Email); err != nil {
			log.Warn("logout audit record failed", "email", account.Email, "err", err)
		}
	}
	h.Credentials.SignOut(ctx, token)

	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
