package sqlite

import (
	"context"
	"time"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/pkg/idx"
)

type activityLogRepo struct {
	q querier
}

func (r *activityLogRepo) Record(ctx context.Context, e domain.ActivityEntry) error {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO activity_log (id, email, action, created_at)
		VALUES (?, ?, ?, ?)`,
		e.ID, e.Email, e.Action, timeToDB(e.CreatedAt),
	)
	return err
}

func (r *activityLogRepo) ListForEmail(ctx context.Context, email string, limit int) ([]domain.ActivityEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, email, action, created_at FROM activity_log
		WHERE email = ? ORDER BY created_at DESC LIMIT ?`,
		email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var (
			e         domain.ActivityEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Email, &e.Action, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = timeFromDB(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
