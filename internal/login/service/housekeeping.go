package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicwatch/reportline/internal/login/store"
)

// HousekeepingService periodically cleans up expired OTP challenges and
// clears the online flag for accounts that stopped checking in.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// StaleOnlineAfter is how long since last activity an account may be
	// shown as online before housekeeping flips it offline.
	StaleOnlineAfter time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 10 minutes.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &HousekeepingService{
		Store:            st,
		Logger:           logger,
		Interval:         interval,
		StaleOnlineAfter: 30 * time.Minute,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// cleanup finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one sweep. Each step is independent; a failure in one
// won't stop the others.
func (s *HousekeepingService) Cleanup() {
	ctx := context.Background()
	now := time.Now()

	deleted, err := s.Store.OTPChallenges().DeleteExpired(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired otp challenges", "error", err)
	} else if deleted > 0 {
		s.Logger.Debug("deleted expired otp challenges", "count", deleted)
	}

	reset, err := s.Store.Accounts().ResetStaleOnline(ctx, now.Add(-s.StaleOnlineAfter))
	if err != nil {
		s.Logger.Error("failed to reset stale online accounts", "error", err)
	} else if reset > 0 {
		s.Logger.Debug("reset stale online accounts", "count", reset)
	}
}
