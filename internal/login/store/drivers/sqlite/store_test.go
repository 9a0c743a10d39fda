package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func newAccount(email, username string) domain.Account {
	now := time.Now()
	return domain.Account{
		ID:               idx.New().String(),
		Email:            email,
		Username:         username,
		DisplayName:      username,
		PasswordHash:     "argon2id-placeholder",
		Role:             domain.RoleUser,
		Status:           domain.StatusActive,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func seedParent(t *testing.T, st *Store, email, username string) string {
	t.Helper()
	account := newAccount(email, username)
	require.NoError(t, st.Accounts().Create(context.Background(), account))
	return account.ID
}

func TestAccountsIdentifierLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	account := newAccount("Alice@Example.com", "alice")
	require.NoError(t, st.Accounts().Create(ctx, account))

	t.Run("by email, case-insensitive", func(t *testing.T) {
		got, err := st.Accounts().GetByIdentifier(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, account.ID, got.ID)
	})

	t.Run("by username", func(t *testing.T) {
		got, err := st.Accounts().GetByIdentifier(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, account.ID, got.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := st.Accounts().GetByIdentifier(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := newAccount("alice@example.com", "alice2")
		require.Error(t, st.Accounts().Create(ctx, dup))
	})
}

func TestAccountsActivityAndStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	account := newAccount("bob@example.com", "bob")
	require.NoError(t, st.Accounts().Create(ctx, account))

	seen := time.Now()
	require.NoError(t, st.Accounts().UpdateActivity(ctx, account.Email, seen, true))

	got, err := st.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.Online)
	require.NotNil(t, got.LastActiveAt)
	require.WithinDuration(t, seen, *got.LastActiveAt, time.Second)

	require.NoError(t, st.Accounts().UpdateStatus(ctx, account.ID, domain.StatusBanned))
	got, err = st.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.Banned())
}

func TestAccountsResetStaleOnline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	stale := newAccount("stale@example.com", "stale")
	fresh := newAccount("fresh@example.com", "fresh")
	require.NoError(t, st.Accounts().Create(ctx, stale))
	require.NoError(t, st.Accounts().Create(ctx, fresh))

	require.NoError(t, st.Accounts().UpdateActivity(ctx, stale.Email, time.Now().Add(-2*time.Hour), true))
	require.NoError(t, st.Accounts().UpdateActivity(ctx, fresh.Email, time.Now(), true))

	n, err := st.Accounts().ResetStaleOnline(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := st.Accounts().GetByEmail(ctx, stale.Email)
	require.NoError(t, err)
	require.False(t, got.Online)

	got, err = st.Accounts().GetByEmail(ctx, fresh.Email)
	require.NoError(t, err)
	require.True(t, got.Online)
}

func TestTrustedDevicesUpsertKeyedOnFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	accountID := seedParent(t, st, "td1@example.com", "td1")

	first := domain.TrustedDevice{AccountID: accountID, Fingerprint: "fp-1", Label: "old", Trusted: true}
	require.NoError(t, st.TrustedDevices().Upsert(ctx, first))
	require.NoError(t, st.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		AccountID: accountID, Fingerprint: "fp-1", Label: "new", Trusted: true,
	}))
	require.NoError(t, st.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		AccountID: accountID, Fingerprint: "fp-2", Trusted: true,
	}))

	devices, err := st.TrustedDevices().ListForAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	got, err := st.TrustedDevices().Get(ctx, accountID, "fp-1")
	require.NoError(t, err)
	require.Equal(t, "new", got.Label)

	// Same fingerprint under another account is a distinct row.
	other := seedParent(t, st, "td2@example.com", "td2")
	require.NoError(t, st.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		AccountID: other, Fingerprint: "fp-1", Trusted: true,
	}))
	_, err = st.TrustedDevices().Get(ctx, other, "fp-1")
	require.NoError(t, err)
}

func TestTrustedDevicesTouchAndRevoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	accountID := seedParent(t, st, "td3@example.com", "td3")
	stale := time.Now().Add(-48 * time.Hour)

	require.NoError(t, st.TrustedDevices().Upsert(ctx, domain.TrustedDevice{
		AccountID: accountID, Fingerprint: "fp-1", Trusted: true, LastUsedAt: stale,
	}))

	now := time.Now()
	require.NoError(t, st.TrustedDevices().Touch(ctx, accountID, "fp-1", now))
	got, err := st.TrustedDevices().Get(ctx, accountID, "fp-1")
	require.NoError(t, err)
	require.WithinDuration(t, now, got.LastUsedAt, time.Second)

	require.NoError(t, st.TrustedDevices().Revoke(ctx, accountID, "fp-1"))
	got, err = st.TrustedDevices().Get(ctx, accountID, "fp-1")
	require.NoError(t, err)
	require.False(t, got.Trusted)
}

func TestOTPChallengeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	now := time.Now()
	challenge := domain.OTPChallenge{
		ID:          idx.New().String(),
		AccountID:   seedParent(t, st, "otp1@example.com", "otp1"),
		Email:       "carol@example.com",
		Purpose:     domain.OTPPurposeNewDevice,
		CodeHash:    "hash-1",
		Fingerprint: "fp-1",
		DeviceLabel: "carol's laptop",
		LastSentAt:  now,
		ExpiresAt:   now.Add(5 * time.Minute),
		CreatedAt:   now,
	}
	require.NoError(t, st.OTPChallenges().Create(ctx, challenge))

	got, err := st.OTPChallenges().Get(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-1", got.CodeHash)
	require.Equal(t, "carol's laptop", got.DeviceLabel)
	require.Zero(t, got.Attempts)
	require.Nil(t, got.ConsumedAt)

	updated, err := st.OTPChallenges().IncrementAttempts(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.Attempts)

	// Refresh rotates the hash and zeroes the counter.
	require.NoError(t, st.OTPChallenges().Refresh(ctx, challenge.ID, "hash-2", now, now.Add(5*time.Minute)))
	got, err = st.OTPChallenges().Get(ctx, challenge.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-2", got.CodeHash)
	require.Zero(t, got.Attempts)

	require.NoError(t, st.OTPChallenges().MarkConsumed(ctx, challenge.ID, time.Now()))
	got, err = st.OTPChallenges().Get(ctx, challenge.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ConsumedAt)
	require.True(t, got.Expired(time.Now()))

	require.NoError(t, st.OTPChallenges().Delete(ctx, challenge.ID))
	_, err = st.OTPChallenges().Get(ctx, challenge.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOTPChallengeDeleteExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	now := time.Now()
	accountID := seedParent(t, st, "otp2@example.com", "otp2")

	mk := func(expires time.Time) domain.OTPChallenge {
		return domain.OTPChallenge{
			ID:         idx.New().String(),
			AccountID:  accountID,
			Email:      "x@example.com",
			Purpose:    domain.OTPPurposeNewDevice,
			CodeHash:   "h",
			LastSentAt: now,
			ExpiresAt:  expires,
			CreatedAt:  now,
		}
	}
	dead := mk(now.Add(-time.Minute))
	live := mk(now.Add(5 * time.Minute))
	require.NoError(t, st.OTPChallenges().Create(ctx, dead))
	require.NoError(t, st.OTPChallenges().Create(ctx, live))

	n, err := st.OTPChallenges().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = st.OTPChallenges().Get(ctx, dead.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.OTPChallenges().Get(ctx, live.ID)
	require.NoError(t, err)
}

func TestActivityLogOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	base := time.Now().Add(-time.Minute)
	for i, action := range []string{domain.ActivityLogin, domain.ActivityLogout, domain.ActivityLogin} {
		require.NoError(t, st.ActivityLog().Record(ctx, domain.ActivityEntry{
			Email:     "dan@example.com",
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, st.ActivityLog().Record(ctx, domain.ActivityEntry{
		Email:  "other@example.com",
		Action: domain.ActivityLogin,
	}))

	entries, err := st.ActivityLog().ListForEmail(ctx, "dan@example.com", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActivityLogin, entries[0].Action)
	require.Equal(t, domain.ActivityLogout, entries[1].Action)
}

func TestReportsListOpenOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	accountID := seedParent(t, st, "rep1@example.com", "rep1")

	mk := func(status string) domain.ModerationReport {
		return domain.ModerationReport{
			ID:        idx.New().String(),
			AccountID: accountID,
			Reason:    "abuse",
			Status:    status,
			CreatedAt: time.Now(),
		}
	}
	require.NoError(t, st.Reports().Create(ctx, mk("open")))
	require.NoError(t, st.Reports().Create(ctx, mk("resolved")))

	reports, err := st.Reports().ListOpenForAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "open", reports[0].Status)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	account := newAccount("eve@example.com", "eve")

	wantErr := context.Canceled
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, err = st.Accounts().GetByEmail(ctx, account.Email)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().Create(ctx, account)
	}))
	_, err = st.Accounts().GetByEmail(ctx, account.Email)
	require.NoError(t, err)
}
