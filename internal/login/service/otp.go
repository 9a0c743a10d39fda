package service

import (
	"context"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/cryptox"
	"github.com/civicwatch/reportline/pkg/idx"
	"github.com/civicwatch/reportline/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	// OTPChallengeTTL is the validity window for an issued code.
	OTPChallengeTTL = 5 * time.Minute

	// MaxOTPAttempts is the number of failed verifications allowed per code
	// before the challenge is closed.
	MaxOTPAttempts = 5

	otpSecretBytes = 20
)

var (
	// ErrOTPInvalid: wrong code, challenge still open, caller may retry.
	ErrOTPInvalid = errors.New("otp_invalid")
	// ErrOTPExpired: challenge past its window or already consumed; the
	// caller must restart authentication to get a fresh code.
	ErrOTPExpired = errors.New("otp_expired")
	// ErrOTPForbidden: attempt budget exhausted, challenge closed.
	ErrOTPForbidden = errors.New("otp_forbidden")
	// ErrOTPSendFailed: the code could not be delivered.
	ErrOTPSendFailed = errors.New("otp_send_failed")
)

// Mailer delivers one-time codes out-of-band. Production wires an email
// provider; dev and tests use loggers/spies.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
}

// OTPService issues and verifies short-lived email codes. Codes are derived
// with HOTP over a fresh per-challenge secret, so only their hash ever
// touches the database.
type OTPService struct {
	Store  store.Store
	Mailer Mailer
}

// Send issues a new challenge for a pending login and delivers the code.
// It returns the challenge ID that must accompany verification.
func (s *OTPService) Send(ctx context.Context, accountID, email string, purpose domain.OTPPurpose, fingerprint, deviceLabel string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOTPSendFailed, err)
	}

	now := time.Now()
	challenge := domain.OTPChallenge{
		ID:          idx.New().String(),
		AccountID:   accountID,
		Email:       email,
		Purpose:     purpose,
		CodeHash:    cryptox.FingerprintToken(code),
		Fingerprint: fingerprint,
		DeviceLabel: deviceLabel,
		LastSentAt:  now,
		ExpiresAt:   now.Add(OTPChallengeTTL),
		CreatedAt:   now,
	}

	if err := s.Store.OTPChallenges().Create(ctx, challenge); err != nil {
		return "", fmt.Errorf("%w: store challenge: %v", ErrOTPSendFailed, err)
	}

	if err := s.Mailer.SendOTP(ctx, email, code, purpose); err != nil {
		// Don't leave an undeliverable challenge behind.
		_ = s.Store.OTPChallenges().Delete(ctx, challenge.ID)
		return "", fmt.Errorf("%w: %v", ErrOTPSendFailed, err)
	}

	return challenge.ID, nil
}

// Resend issues a fresh code on an open challenge, resetting its expiry and
// attempt counter. The caller enforces the client-side cooldown; server-side
// throttling sits on the HTTP route.
func (s *OTPService) Resend(ctx context.Context, challengeID string) error {
	challenge, err := s.Store.OTPChallenges().Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPExpired
		}
		return fmt.Errorf("%w: load challenge: %v", ErrOTPSendFailed, err)
	}
	if challenge.ConsumedAt != nil {
		return ErrOTPExpired
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPSendFailed, err)
	}

	now := time.Now()
	err = s.Store.OTPChallenges().Refresh(ctx, challengeID,
		cryptox.FingerprintToken(code), now, now.Add(OTPChallengeTTL))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPExpired
		}
		return fmt.Errorf("%w: refresh challenge: %v", ErrOTPSendFailed, err)
	}

	if err := s.Mailer.SendOTP(ctx, challenge.Email, code, challenge.Purpose); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPSendFailed, err)
	}
	return nil
}

// Verify checks a submitted code against its challenge. On success the
// challenge is consumed (single use) and returned. Failures classify into
// ErrOTPInvalid (retry same challenge), ErrOTPExpired (restart), and
// ErrOTPForbidden (attempt budget exhausted, restart).
func (s *OTPService) Verify(ctx context.Context, challengeID, code string) (domain.OTPChallenge, error) {
	log := slogx.FromContext(ctx)

	challenge, err := s.Store.OTPChallenges().Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OTPChallenge{}, ErrOTPExpired
		}
		return domain.OTPChallenge{}, fmt.Errorf("load challenge: %w", err)
	}

	now := time.Now()
	if challenge.Expired(now) {
		return domain.OTPChallenge{}, ErrOTPExpired
	}
	if challenge.Attempts >= MaxOTPAttempts {
		_ = s.Store.OTPChallenges().Delete(ctx, challengeID)
		log.Warn("otp challenge exceeded max attempts", "challenge_id", challengeID)
		return domain.OTPChallenge{}, ErrOTPForbidden
	}

	submitted := cryptox.FingerprintToken(code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.CodeHash)) != 1 {
		updated, err := s.Store.OTPChallenges().IncrementAttempts(ctx, challengeID)
		if err != nil {
			log.Error("failed to increment otp attempts", "challenge_id", challengeID, "err", err)
			return domain.OTPChallenge{}, ErrOTPInvalid
		}
		if updated.Attempts >= MaxOTPAttempts {
			_ = s.Store.OTPChallenges().Delete(ctx, challengeID)
			return domain.OTPChallenge{}, ErrOTPForbidden
		}
		return domain.OTPChallenge{}, ErrOTPInvalid
	}

	if err := s.Store.OTPChallenges().MarkConsumed(ctx, challengeID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the race with a concurrent verification.
			return domain.OTPChallenge{}, ErrOTPExpired
		}
		return domain.OTPChallenge{}, fmt.Errorf("consume challenge: %w", err)
	}

	return challenge, nil
}

// generateCode derives a 6-digit code via HOTP over a single-use random
// secret. The secret is discarded immediately; only the code's hash is kept.
func generateCode() (string, error) {
	raw, err := cryptox.RandomBytes(otpSecretBytes)
	if err != nil {
		return "", err
	}
	secret := base32.StdEncoding.EncodeToString(raw)

	return hotp.GenerateCodeCustom(secret, 1, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
