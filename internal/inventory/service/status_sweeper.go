package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/events"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// StatusSweeper advances time-driven status transitions in the background.
// Counter-driven transitions happen inline on every adjustment, but a batch
// can cross into near_expiry or expired purely by the clock moving, so a
// periodic sweep keeps the stored status column honest between writes.
type StatusSweeper struct {
	batchRepo *repository.BatchRepository
	publisher *events.StockEventPublisher
	interval  time.Duration
	logger    *logger.Logger
	cancel    context.CancelFunc
}

// NewStatusSweeper creates a new status sweeper
func NewStatusSweeper(batchRepo *repository.BatchRepository, publisher *events.StockEventPublisher, interval time.Duration, log *logger.Logger) *StatusSweeper {
	return &StatusSweeper{
		batchRepo: batchRepo,
		publisher: publisher,
		interval:  interval,
		logger:    log,
	}
}

// Start starts the sweeper in a background goroutine
func (s *StatusSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("status sweeper started")

		// Run an initial sweep immediately
		s.runSweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("status sweeper stopped")
				return
			case <-ticker.C:
				s.runSweep(ctx)
			}
		}
	}()
}

// Stop stops the sweeper goroutine
func (s *StatusSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *StatusSweeper) runSweep(ctx context.Context) {
	start := time.Now()

	expired, err := s.batchRepo.RefreshExpiredStatuses(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to refresh expired statuses")
		return
	}

	nearExpiry, err := s.batchRepo.RefreshNearExpiryStatuses(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to refresh near expiry statuses")
		return
	}

	for _, batch := range expired {
		message := fmt.Sprintf("%s batch %s has expired with %d units remaining",
			batch.MedicineName, batch.BatchNumber, batch.Available())
		s.publisher.PublishAlertGenerated(ctx, batch, repository.StatusExpired, message)
	}

	now := time.Now()
	for _, batch := range nearExpiry {
		s.publisher.PublishBatchExpiring(ctx, batch, now)
	}

	if len(expired) > 0 || len(nearExpiry) > 0 {
		s.logger.Info().
			Int("expired", len(expired)).
			Int("near_expiry", len(nearExpiry)).
			Dur("duration", time.Since(start)).
			Msg("status sweep completed")
	}
}
