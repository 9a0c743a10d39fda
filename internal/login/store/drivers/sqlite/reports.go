package sqlite

import (
	"context"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/pkg/idx"
)

type reportsRepo struct {
	q querier
}

func (r *reportsRepo) ListOpenForAccount(ctx context.Context, accountID string) ([]domain.ModerationReport, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, reason, status, created_at FROM moderation_reports
		WHERE account_id = ? AND status = 'open'
		ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ModerationReport
	for rows.Next() {
		var (
			m         domain.ModerationReport
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Reason, &m.Status, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *reportsRepo) Create(ctx context.Context, m domain.ModerationReport) error {
	if m.ID == "" {
		m.ID = idx.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Status == "" {
		m.Status = "open"
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO moderation_reports (id, account_id, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.AccountID, m.Reason, m.Status, timeToDB(m.CreatedAt),
	)
	return err
}
