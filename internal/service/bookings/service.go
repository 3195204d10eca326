package bookings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

// ErrStoreUnavailable is returned by stores that could not be reached at startup.
var ErrStoreUnavailable = errors.New("booking store unavailable")

// Store is the persistent booking collaborator.
type Store interface {
	DetectSheetName(ctx context.Context) (string, error)
	GetAllBookings(ctx context.Context) ([]models.Booking, error)
	SaveBooking(ctx context.Context, booking models.Booking) error
}

// Service is a read-through cache over a Store. It is owned by the server
// process and must be built with NewService.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	cached   []models.Booking
	loadedAt time.Time

	// generation counts recorded bookings. A load that overlaps a Record is
	// returned to its caller but not cached.
	generation uint64
}

// NewService wires a booking cache around store.
func NewService(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NopStore{}
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Init resolves the backing sheet. Failure is logged and leaves the service
// usable; later reads surface the store error instead.
func (s *Service) Init(ctx context.Context) {
	name, err := s.store.DetectSheetName(ctx)
	if err != nil {
		s.logger.Warn("booking sheet detection failed", zap.Error(err))
		return
	}
	s.logger.Info("booking sheet detected", zap.String("sheet", name))
}

// Bookings returns the cached bookings, reloading them when older than the TTL.
func (s *Service) Bookings(ctx context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	if s.fresh() {
		out := s.cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	return s.Refresh(ctx)
}

// Refresh reloads the bookings from the store unconditionally.
func (s *Service) Refresh(ctx context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()

	bookings, err := s.store.GetAllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}

	s.mu.Lock()
	stale := generation != s.generation
	if !stale {
		s.cached = bookings
		s.loadedAt = s.now()
	}
	s.mu.Unlock()

	if stale {
		s.logger.Debug("bookings changed during load, cache not updated", zap.Int("count", len(bookings)))
		return bookings, nil
	}

	s.logger.Debug("bookings cache refreshed", zap.Int("count", len(bookings)))
	return bookings, nil
}

// Record saves booking and drops the cached copy so the next read sees it.
func (s *Service) Record(ctx context.Context, booking models.Booking) error {
	if err := s.store.SaveBooking(ctx, booking); err != nil {
		return fmt.Errorf("save booking: %w", err)
	}

	s.mu.Lock()
	s.generation++
	s.loadedAt = time.Time{}
	s.mu.Unlock()

	return nil
}

func (s *Service) fresh() bool {
	return !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) < s.ttl
}

// NopStore keeps no bookings. It backs BOOKING_STORE=none.
type NopStore struct{}

// DetectSheetName reports that no sheet is configured.
func (NopStore) DetectSheetName(context.Context) (string, error) { return "none", nil }

// GetAllBookings always returns an empty list.
func (NopStore) GetAllBookings(context.Context) ([]models.Booking, error) {
	return []models.Booking{}, nil
}

// SaveBooking discards booking.
func (NopStore) SaveBooking(context.Context, models.Booking) error { return nil }

// UnavailableStore stands in for a store that failed to initialize.
type UnavailableStore struct {
	Err error
}

// DetectSheetName returns the initialization error.
func (u UnavailableStore) DetectSheetName(context.Context) (string, error) { return "", u.err() }

// GetAllBookings returns the initialization error.
func (u UnavailableStore) GetAllBookings(context.Context) ([]models.Booking, error) {
	return nil, u.err()
}

// SaveBooking returns the initialization error.
func (u UnavailableStore) SaveBooking(context.Context, models.Booking) error { return u.err() }

func (u UnavailableStore) err() error {
	if u.Err == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, u.Err)
}
