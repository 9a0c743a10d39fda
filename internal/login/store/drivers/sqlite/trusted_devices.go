package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/pkg/idx"
)

type trustedDevicesRepo struct {
	q querier
}

const trustedDeviceColumns = `id, account_id, fingerprint, label, trusted,
	last_used_at, created_at, updated_at`

func scanTrustedDevice(scan func(dest ...any) error) (domain.TrustedDevice, error) {
	var (
		td                           domain.TrustedDevice
		lastUsed, createdAt, updated string
	)

	err := scan(
		&td.ID, &td.AccountID, &td.Fingerprint, &td.Label, &td.Trusted,
		&lastUsed, &createdAt, &updated,
	)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}

	if td.LastUsedAt, err = timeFromDB(lastUsed); err != nil {
		return domain.TrustedDevice{}, err
	}
	if td.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return domain.TrustedDevice{}, err
	}
	if td.UpdatedAt, err = timeFromDB(updated); err != nil {
		return domain.TrustedDevice{}, err
	}
	return td, nil
}

func (r *trustedDevicesRepo) Get(ctx context.Context, accountID, fingerprint string) (domain.TrustedDevice, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+trustedDeviceColumns+` FROM trusted_devices
		 WHERE account_id = ? AND fingerprint = ?`,
		accountID, fingerprint)
	return scanTrustedDevice(row.Scan)
}

func (r *trustedDevicesRepo) Upsert(ctx context.Context, td domain.TrustedDevice) error {
	if td.ID == "" {
		td.ID = idx.New().String()
	}
	now := time.Now()
	if td.CreatedAt.IsZero() {
		td.CreatedAt = now
	}
	if td.LastUsedAt.IsZero() {
		td.LastUsedAt = now
	}

	// Keyed on (account_id, fingerprint); two devices completing OTP at the
	// same moment resolve last-write-wins.
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO trusted_devices (
			id, account_id, fingerprint, label, trusted,
			last_used_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, fingerprint) DO UPDATE SET
			label = excluded.label,
			trusted = excluded.trusted,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at`,
		td.ID, td.AccountID, td.Fingerprint, td.Label, td.Trusted,
		timeToDB(td.LastUsedAt), timeToDB(td.CreatedAt), timeToDB(now),
	)
	return err
}

func (r *trustedDevicesRepo) Touch(ctx context.Context, accountID, fingerprint string, usedAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE trusted_devices
		SET last_used_at = ?, updated_at = ?
		WHERE account_id = ? AND fingerprint = ?`,
		timeToDB(usedAt), timeToDB(time.Now()), accountID, fingerprint,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *trustedDevicesRepo) ListForAccount(ctx context.Context, accountID string) ([]domain.TrustedDevice, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+trustedDeviceColumns+` FROM trusted_devices
		 WHERE account_id = ? ORDER BY last_used_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrustedDevice
	for rows.Next() {
		td, err := scanTrustedDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, rows.Err()
}

func (r *trustedDevicesRepo) Revoke(ctx context.Context, accountID, fingerprint string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE trusted_devices
		SET trusted = 0, updated_at = ?
		WHERE account_id = ? AND fingerprint = ?`,
		timeToDB(time.Now()), accountID, fingerprint,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
