package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "bookings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStoreSaveAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	later := models.Booking{CreatedAt: time.Date(2025, 12, 30, 9, 0, 0, 0, time.UTC), Name: "Omar", Phone: "962700000002"}
	earlier := models.Booking{CreatedAt: time.Date(2025, 12, 29, 9, 0, 0, 0, time.UTC), Name: "Lina", Phone: "962700000001"}

	require.NoError(t, store.SaveBooking(ctx, later))
	require.NoError(t, store.SaveBooking(ctx, earlier))

	bookings, err := store.GetAllBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "Lina", bookings[0].Name)
	assert.Equal(t, "Omar", bookings[1].Name)
	assert.True(t, earlier.CreatedAt.Equal(bookings[0].CreatedAt))
}

func TestBoltStoreEmpty(t *testing.T) {
	store := openTestStore(t)

	bookings, err := store.GetAllBookings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, bookings)
	assert.Empty(t, bookings)

	name, err := store.DetectSheetName(context.Background())
	require.NoError(t, err)
	assert.Contains(t, name, "#bookings")
}

func TestBoltStoreSameKeyOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 12, 29, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBooking(ctx, models.Booking{CreatedAt: at, Phone: "1", Service: "Cleaning"}))
	require.NoError(t, store.SaveBooking(ctx, models.Booking{CreatedAt: at, Phone: "1", Service: "Whitening"}))

	bookings, err := store.GetAllBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Whitening", bookings[0].Service)
}

func TestBoltStoreCloseReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.db")

	first, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveBooking(context.Background(), models.Booking{Name: "Lina", Phone: "962700000000"}))
	require.NoError(t, first.Close())

	second, err := NewBoltStore(path)
	require.NoError(t, err)
	defer second.Close()

	bookings, err := second.GetAllBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Lina", bookings[0].Name)
}
