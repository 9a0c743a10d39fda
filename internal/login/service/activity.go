package service

import (
	"context"

	"github.com/civicwatch/reportline/internal/login/domain"
	"github.com/civicwatch/reportline/internal/login/store"
)

// ActivityService is the fire-and-forget audit sink. Callers log returned
// errors but never let them fail the primary flow.
type ActivityService struct {
	Store store.Store
}

func (s *ActivityService) RecordLogin(ctx context.Context, email string) error {
	return s.Store.ActivityLog().Record(ctx, domain.ActivityEntry{
		Email:  email,
		Action: domain.ActivityLogin,
	})
}

func (s *ActivityService) RecordLogout(ctx context.Context, email string) error {
	return s.Store.ActivityLog().Record(ctx, domain.ActivityEntry{
		Email:  email,
		Action: domain.ActivityLogout,
	})
}
