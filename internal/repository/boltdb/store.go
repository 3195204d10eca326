package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

var bookingsBucket = []byte("bookings")

// BoltStore keeps bookings in a local bbolt file, one JSON value per booking.
// Keys sort by creation time.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bookingsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bookings bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// DetectSheetName names the file and bucket holding the bookings.
func (s *BoltStore) DetectSheetName(context.Context) (string, error) {
	return fmt.Sprintf("%s#%s", s.path, bookingsBucket), nil
}

// GetAllBookings returns every stored booking in key order.
func (s *BoltStore) GetAllBookings(context.Context) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bookingsBucket).ForEach(func(_, v []byte) error {
			var b models.Booking
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			bookings = append(bookings, b)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading bookings: %w", err)
	}
	return bookings, nil
}

// SaveBooking stores booking under "<created-at>|<phone>".
func (s *BoltStore) SaveBooking(_ context.Context, booking models.Booking) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(booking)
		if err != nil {
			return err
		}
		return tx.Bucket(bookingsBucket).Put(bookingKey(booking), data)
	})
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func bookingKey(b models.Booking) []byte {
	return []byte(b.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + b.Phone)
}
