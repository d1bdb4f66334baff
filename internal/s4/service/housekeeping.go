package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/s4hq/s4/internal/s4/store"
)

// HousekeepingService periodically deletes expired login processes and stale
// unverified verification codes so abandoned logins and registrations do not
// accumulate.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// SessionTTL mirrors SessionService.SessionTTL; rows older than this are
	// unusable and safe to remove.
	SessionTTL time.Duration

	// CodeTTL bounds how long an unverified verification code is kept.
	CodeTTL time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the worker. Zero durations fall back to
// defaults (1h interval, DefaultSessionTTL, 24h code retention).
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, sessionTTL, codeTTL time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if codeTTL <= 0 {
		codeTTL = 24 * time.Hour
	}

	return &HousekeepingService{
		Store:      st,
		Logger:     logger,
		Interval:   interval,
		SessionTTL: sessionTTL,
		CodeTTL:    codeTTL,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress cleanup ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each deletion independently; one failure does not stop the rest.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Store.LoginProcesses().DeleteExpired(ctx, now.Add(-s.SessionTTL)); err != nil {
		s.Logger.Error("failed to delete expired login processes", "error", err)
	}

	if err := s.Store.VerificationCodes().DeleteStaleUnverified(ctx, now.Add(-s.CodeTTL)); err != nil {
		s.Logger.Error("failed to delete stale verification codes", "error", err)
	}

	s.Logger.Debug("housekeeping cleanup completed")
}
