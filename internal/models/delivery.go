package models

import "github.com/google/uuid"

// DeliveryVenue is one recipient in a delivery job.
type DeliveryVenue struct {
	VenueID      uuid.UUID `json:"venueId"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	ManagerEmail string    `json:"managerEmail,omitempty"`
}

// DeliveryJob hands a freshly created broadcast to the notifier.
type DeliveryJob struct {
	BroadcastID uuid.UUID       `json:"broadcastId"`
	Venues      []DeliveryVenue `json:"venues"`
	Request     Request         `json:"request"`
}
