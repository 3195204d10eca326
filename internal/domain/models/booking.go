package models

import "time"

// Booking is one clinic appointment as kept by the booking store.
type Booking struct {
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	Name        string    `bson:"name" json:"name"`
	Phone       string    `bson:"phone" json:"phone"`
	Service     string    `bson:"service" json:"service"`
	Appointment string    `bson:"appointment" json:"appointment"`
	Status      string    `bson:"status" json:"status"`
}

// BookingStatusConfirmed marks bookings whose confirmation was sent over WhatsApp.
const BookingStatusConfirmed = "confirmed"
