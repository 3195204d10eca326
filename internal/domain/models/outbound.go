package models

import "strings"

// BookingConfirmationRequest is the body accepted by the booking confirmation endpoint.
type BookingConfirmationRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Service     string `json:"service"`
	Appointment string `json:"appointment"`
	Image       string `json:"image"`
}

// HasImage reports whether Image looks like a link the Graph API can fetch.
func (r BookingConfirmationRequest) HasImage() bool {
	return strings.HasPrefix(r.Image, "http")
}

// AckResponse is the informational body returned for every accepted webhook POST.
type AckResponse struct {
	Received bool `json:"received"`
}
