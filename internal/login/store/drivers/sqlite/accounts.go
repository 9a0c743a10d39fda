package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, email, username, display_name, password_hash, role, status,
	email_confirmed_at, last_active_at, online, created_at, updated_at`

func (r *accountsRepo) scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                  domain.Account
		username           sql.NullString
		emailConfirmedAt   sql.NullString
		lastActiveAt       sql.NullString
		createdAt, updated string
	)

	err := row.Scan(
		&a.ID, &a.Email, &username, &a.DisplayName, &a.PasswordHash,
		&a.Role, &a.Status, &emailConfirmedAt, &lastActiveAt, &a.Online,
		&createdAt, &updated,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Username = mapNullString(username)
	if a.EmailConfirmedAt, err = optionalTimeFromDB(emailConfirmedAt); err != nil {
		return domain.Account{}, err
	}
	if a.LastActiveAt, err = optionalTimeFromDB(lastActiveAt); err != nil {
		return domain.Account{}, err
	}
	if a.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return domain.Account{}, err
	}
	if a.UpdatedAt, err = timeFromDB(updated); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) GetByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	return r.scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? OR username = ?`,
		identifier, identifier))
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, username, display_name, password_hash, role, status,
			email_confirmed_at, last_active_at, online, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, mapStringNull(a.Username), a.DisplayName, a.PasswordHash,
		a.Role, a.Status, optionalTimeToDB(a.EmailConfirmedAt),
		optionalTimeToDB(a.LastActiveAt), a.Online,
		timeToDB(a.CreatedAt), timeToDB(a.UpdatedAt),
	)
	return err
}

func (r *accountsRepo) UpdateActivity(ctx context.Context, email string, lastActiveAt time.Time, online bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET last_active_at = ?, online = ?, updated_at = ?
		WHERE email = ?`,
		timeToDB(lastActiveAt), online, timeToDB(time.Now()), email,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *accountsRepo) UpdateStatus(ctx context.Context, accountID string, status domain.Status) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		status, timeToDB(time.Now()), accountID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *accountsRepo) ResetStaleOnline(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET online = 0, updated_at = ?
		WHERE online = 1 AND (last_active_at IS NULL OR last_active_at < ?)`,
		timeToDB(time.Now()), timeToDB(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
