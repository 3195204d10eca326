package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/clinic-webhook/internal/config"
	"github.com/mamadbah2/clinic-webhook/internal/repository/boltdb"
	bookingsvc "github.com/mamadbah2/clinic-webhook/internal/service/bookings"
)

func clearBookingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOOKING_STORE", "BOOKING_CACHE_TTL", "BOOKING_REFRESH_CRON", "TIMEZONE",
		"GOOGLE_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEET_ID", "BOOKING_SHEET_NAME",
		"MONGODB_URI", "BOLT_PATH", "WHATSAPP_MARK_AS_READ",
	} {
		t.Setenv(key, "")
	}
}

func TestOpenBookingStoreFallsBackWhenMisconfigured(t *testing.T) {
	clearBookingEnv(t)
	t.Setenv("GOOGLE_SHEET_ID", "abc")

	cfg, err := config.Load("")
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	store, closeStore := openBookingStore(context.Background(), cfg, zap.New(core))
	defer closeStore()

	require.IsType(t, bookingsvc.UnavailableStore{}, store)
	_, err = store.GetAllBookings(context.Background())
	assert.ErrorIs(t, err, bookingsvc.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "GOOGLE_SHEETS_CREDENTIALS_PATH")
	assert.Equal(t, 1, logs.FilterMessage("booking store misconfigured, bookings disabled").Len())
}

func TestOpenBookingStoreBolt(t *testing.T) {
	clearBookingEnv(t)
	t.Setenv("BOOKING_STORE", "bolt")
	t.Setenv("BOLT_PATH", filepath.Join(t.TempDir(), "bookings.db"))

	cfg, err := config.Load("")
	require.NoError(t, err)

	store, closeStore := openBookingStore(context.Background(), cfg, zap.NewNop())
	defer closeStore()

	assert.IsType(t, &boltdb.BoltStore{}, store)
}

func TestOpenBookingStoreNone(t *testing.T) {
	clearBookingEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	store, closeStore := openBookingStore(context.Background(), cfg, zap.NewNop())
	defer closeStore()

	assert.IsType(t, bookingsvc.NopStore{}, store)
}

func TestStartSchedulerLogsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "bad cron expression", env: map[string]string{"TIMEZONE": "UTC", "BOOKING_REFRESH_CRON": "every now and then"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBookingEnv(t)
			t.Setenv("BOOKING_STORE", "bolt")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load("")
			require.NoError(t, err)

			core, logs := observer.New(zapcore.ErrorLevel)
			bookings := bookingsvc.NewService(bookingsvc.NopStore{}, cfg.Bookings.CacheTTL, nil)

			assert.Nil(t, startScheduler(cfg, bookings, zap.New(core)))
			assert.Equal(t, 1, logs.FilterMessage("booking refresh disabled").Len())
		})
	}
}
