package service

import (
	"context"
	"errors"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/slogx"
)

// TrustService is a thin client over (account, fingerprint) trust records.
//
// Reads fail closed: any lookup problem means "not trusted", which forces an
// OTP rather than silently granting trust. Writes are best-effort: by the
// time trust is persisted the authentication decision has already succeeded,
// so persistence failures are logged and swallowed.
type TrustService struct {
	Store store.Store
}

// IsTrusted reports whether the device may skip the second factor.
// Never returns an error.
func (s *TrustService) IsTrusted(ctx context.Context, accountID, fingerprint string) bool {
	td, err := s.Store.TrustedDevices().Get(ctx, accountID, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Warn("trust lookup failed, treating device as untrusted",
				"account_id", accountID, "err", err)
		}
		return false
	}
	return td.Trusted
}

// UpsertTrusted records the device as trusted after a successful OTP
// verification. Idempotent; returns the persistence error for the caller to
// log, never to propagate.
func (s *TrustService) UpsertTrusted(ctx context.Context, accountID, fingerprint, label string) error {
	now := time.Now()
	return s.Store.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		AccountID:   accountID,
		Fingerprint: fingerprint,
		Label:       label,
		Trusted:     true,
		LastUsedAt:  now,
	})
}

// Touch refreshes the last-used timestamp when an already-trusted device
// logs in again. Best-effort.
func (s *TrustService) Touch(ctx context.Context, accountID, fingerprint string) error {
	return s.Store.TrustedDevices().Touch(ctx, accountID, fingerprint, time.Now())
}
