package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/config"
	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

const refreshTimeout = 2 * time.Minute

// BookingRefresher reloads the booking cache.
type BookingRefresher interface {
	Refresh(ctx context.Context) ([]models.Booking, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	bookings BookingRefresher
	spec     string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler running in the configured timezone.
func NewScheduler(cfg config.BookingsConfig, bookings BookingRefresher, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		bookings: bookings,
		spec:     cfg.RefreshCron,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("booking_refresh", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.refreshBookings); err != nil {
		return fmt.Errorf("schedule booking refresh %q: %w", s.spec, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshBookings() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	bookings, err := s.bookings.Refresh(ctx)
	if err != nil {
		s.logger.Error("failed to refresh bookings", zap.Error(err))
		return
	}

	s.logger.Info("bookings refreshed", zap.Int("count", len(bookings)))
}
