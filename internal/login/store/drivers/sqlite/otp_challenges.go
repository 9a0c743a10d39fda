package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
)

type otpChallengesRepo struct {
	q querier
}

const otpChallengeColumns = `id, account_id, email, purpose, code_hash, fingerprint,
	device_label, attempts, last_sent_at, expires_at, consumed_at, created_at`

func scanOTPChallenge(scan func(dest ...any) error) (domain.OTPChallenge, error) {
	var (
		c                              domain.OTPChallenge
		lastSent, expiresAt, createdAt string
		consumedAt                     sql.NullString
	)

	err := scan(
		&c.ID, &c.AccountID, &c.Email, &c.Purpose, &c.CodeHash, &c.Fingerprint,
		&c.DeviceLabel, &c.Attempts, &lastSent, &expiresAt, &consumedAt, &createdAt,
	)
	if err != nil {
		return domain.OTPChallenge{}, mapNotFound(err)
	}

	if c.LastSentAt, err = timeFromDB(lastSent); err != nil {
		return domain.OTPChallenge{}, err
	}
	if c.ExpiresAt, err = timeFromDB(expiresAt); err != nil {
		return domain.OTPChallenge{}, err
	}
	if c.ConsumedAt, err = optionalTimeFromDB(consumedAt); err != nil {
		return domain.OTPChallenge{}, err
	}
	if c.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return domain.OTPChallenge{}, err
	}
	return c, nil
}

func (r *otpChallengesRepo) Create(ctx context.Context, c domain.OTPChallenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO otp_challenges (
			id, account_id, email, purpose, code_hash, fingerprint,
			device_label, attempts, last_sent_at, expires_at, consumed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Email, c.Purpose, c.CodeHash, c.Fingerprint,
		c.DeviceLabel, c.Attempts, timeToDB(c.LastSentAt), timeToDB(c.ExpiresAt),
		optionalTimeToDB(c.ConsumedAt), timeToDB(c.CreatedAt),
	)
	return err
}

func (r *otpChallengesRepo) Get(ctx context.Context, id string) (domain.OTPChallenge, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+otpChallengeColumns+` FROM otp_challenges WHERE id = ?`, id)
	return scanOTPChallenge(row.Scan)
}

func (r *otpChallengesRepo) Refresh(ctx context.Context, id, codeHash string, lastSentAt, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE otp_challenges
		SET code_hash = ?, last_sent_at = ?, expires_at = ?, attempts = 0
		WHERE id = ? AND consumed_at IS NULL`,
		codeHash, timeToDB(lastSentAt), timeToDB(expiresAt), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *otpChallengesRepo) IncrementAttempts(ctx context.Context, id string) (domain.OTPChallenge, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = ?
		RETURNING `+otpChallengeColumns, id)
	return scanOTPChallenge(row.Scan)
}

func (r *otpChallengesRepo) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE otp_challenges
		SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL`,
		timeToDB(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *otpChallengesRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = ?`, id)
	return err
}

func (r *otpChallengesRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < ? OR consumed_at IS NOT NULL`,
		timeToDB(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
