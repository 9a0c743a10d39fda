package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/internal/login/store/drivers/sqlite"
	"github.com/civicwatch/reportline/pkg/idx"
	"github.com/stretchr/testify/require"
)

// newTestOTPService returns a service over a fresh store plus a seeded
// account ID for challenges to hang off.
func newTestOTPService(t *testing.T) (*OTPService, store.Store, *mailerSpy, string) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	account := seedAccount(t, st, "otp-owner@example.com", "otpowner", "pw", accountOpts{})
	mailer := &mailerSpy{}
	return &OTPService{Store: st, Mailer: mailer}, st, mailer, account.ID
}

func TestOTPSendStoresHashNotCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st, mailer, accountID := newTestOTPService(t)
	id, err := svc.Send(ctx, accountID, "rita@example.com", domain.OTPPurposeNewDevice, "fp-1", "rita's phone")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, mailer.count())

	code := mailer.lastCode(t)
	require.Len(t, code, 6)

	challenge, err := st.OTPChallenges().Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, accountID, challenge.AccountID)
	require.Equal(t, "rita@example.com", challenge.Email)
	require.Equal(t, "fp-1", challenge.Fingerprint)
	require.Equal(t, "rita's phone", challenge.DeviceLabel)
	require.NotEqual(t, code, challenge.CodeHash, "the plaintext code must never be stored")
	require.Nil(t, challenge.ConsumedAt)
}

func TestOTPSendDeliveryFailureRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st, mailer, accountID := newTestOTPService(t)
	mailer.fail = errors.New("provider 500")

	_, err := svc.Send(ctx, accountID, "sam@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.ErrorIs(t, err, ErrOTPSendFailed)

	deleted, err := st.OTPChallenges().DeleteExpired(ctx, time.Now().Add(OTPChallengeTTL+time.Minute))
	require.NoError(t, err)
	require.Zero(t, deleted, "an undeliverable challenge must not linger")
}

func TestOTPVerifyLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, mailer, accountID := newTestOTPService(t)

	id, err := svc.Send(ctx, accountID, "tess@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.NoError(t, err)
	code := mailer.lastCode(t)

	challenge, err := svc.Verify(ctx, id, code)
	require.NoError(t, err)
	require.Equal(t, "tess@example.com", challenge.Email)

	// Consumed challenges read as expired on replay.
	_, err = svc.Verify(ctx, id, code)
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPVerifyWrongCodeCountsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st, mailer, accountID := newTestOTPService(t)

	id, err := svc.Send(ctx, accountID, "uma@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.NoError(t, err)
	code := mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 1; i < MaxOTPAttempts; i++ {
		_, err = svc.Verify(ctx, id, wrong)
		require.ErrorIs(t, err, ErrOTPInvalid)

		challenge, gerr := st.OTPChallenges().Get(ctx, id)
		require.NoError(t, gerr)
		require.Equal(t, i, challenge.Attempts)
	}

	// The final failure closes the challenge entirely.
	_, err = svc.Verify(ctx, id, wrong)
	require.ErrorIs(t, err, ErrOTPForbidden)
	_, err = st.OTPChallenges().Get(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	// And the real code is now useless.
	_, err = svc.Verify(ctx, id, code)
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPVerifyExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st, mailer, accountID := newTestOTPService(t)

	id, err := svc.Send(ctx, accountID, "vic@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.NoError(t, err)

	challenge, err := st.OTPChallenges().Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, st.OTPChallenges().Refresh(ctx, id, challenge.CodeHash,
		challenge.LastSentAt, time.Now().Add(-time.Second)))

	_, err = svc.Verify(ctx, id, mailer.lastCode(t))
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPResendRotatesCodeAndResetsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st, mailer, accountID := newTestOTPService(t)

	id, err := svc.Send(ctx, accountID, "wes@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.NoError(t, err)

	// Burn one attempt so the reset is observable.
	first, err := st.OTPChallenges().Get(ctx, id)
	require.NoError(t, err)
	_, err = st.OTPChallenges().IncrementAttempts(ctx, id)
	require.NoError(t, err)

	require.NoError(t, svc.Resend(ctx, id))
	require.Equal(t, 2, mailer.count())

	refreshed, err := st.OTPChallenges().Get(ctx, id)
	require.NoError(t, err)
	require.Zero(t, refreshed.Attempts)
	require.False(t, refreshed.ExpiresAt.Before(first.ExpiresAt))

	// Only the latest code verifies.
	_, err = svc.Verify(ctx, id, mailer.lastCode(t))
	require.NoError(t, err)
}

func TestOTPResendUnknownOrConsumedChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, mailer, accountID := newTestOTPService(t)

	require.ErrorIs(t, svc.Resend(ctx, idx.New().String()), ErrOTPExpired)

	id, err := svc.Send(ctx, accountID, "zoe@example.com", domain.OTPPurposeNewDevice, "fp-1", "")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, id, mailer.lastCode(t))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Resend(ctx, id), ErrOTPExpired)
}
