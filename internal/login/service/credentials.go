package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/cryptox"
	"github.com/civicwatch/reportline/pkg/idx"
	"github.com/civicwatch/reportline/pkg/sessiontoken"
	"github.com/civicwatch/reportline/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailUnconfirmed   = errors.New("email_unconfirmed")
	ErrAccountNotFound    = errors.New("account_not_found")
)

// CredentialService owns password verification and session token issuance.
// Nothing outside this service reads password hashes.
type CredentialService struct {
	Store  store.Store
	Signer *sessiontoken.Signer
}

// SignIn checks email+password and mints a session token. The orchestrator
// may still discard the token if the device is untrusted.
func (s *CredentialService) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	account, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrAccountNotFound
		}
		return domain.Session{}, fmt.Errorf("load account: %w", err)
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}

	if account.EmailConfirmedAt == nil {
		return domain.Session{}, ErrEmailUnconfirmed
	}

	return s.IssueSession(ctx, account)
}

// IssueSession mints a session token for an account whose identity has
// already been proven (password or OTP).
func (s *CredentialService) IssueSession(_ context.Context, account domain.Account) (domain.Session, error) {
	sessionID := idx.New().String()
	token, expiresAt, err := s.Signer.Sign(account.ID, string(account.Role), sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	return domain.Session{
		Token:     token,
		AccountID: account.ID,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

// CurrentIdentity resolves a session token back to its account profile.
func (s *CredentialService) CurrentIdentity(ctx context.Context, token string) (domain.Account, error) {
	claims, err := s.Signer.Parse(token)
	if err != nil {
		return domain.Account{}, ErrInvalidCredentials
	}

	account, err := s.Store.Accounts().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

// SignOut invalidates the caller's session best-effort: the token itself is
// stateless, so sign-out only flips presence bookkeeping. Errors are logged
// and swallowed.
func (s *CredentialService) SignOut(ctx context.Context, token string) {
	log := slogx.FromContext(ctx)

	claims, err := s.Signer.Parse(token)
	if err != nil {
		// Expired or garbage token; nothing to do.
		return
	}

	account, err := s.Store.Accounts().GetByID(ctx, claims.Subject)
	if err != nil {
		log.Warn("sign-out account lookup failed", "account_id", claims.Subject, "err", err)
		return
	}

	if err := s.Store.Accounts().UpdateActivity(ctx, account.Email, time.Now(), false); err != nil {
		log.Warn("sign-out activity update failed", "email", account.Email, "err", err)
	}
}
