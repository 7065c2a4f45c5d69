package models

import (
	"time"

	"github.com/google/uuid"
)

// EventRequest is a historical inquiry recorded before broadcasts existed,
// or alongside them.
type EventRequest struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	EventType          string     `json:"eventType"`
	EventDate          *time.Time `json:"eventDate,omitempty"`
	GuestCount         *string    `json:"guestCount,omitempty"`
	LocationPreference *string    `json:"locationPreference,omitempty"`
	Requirements       *string    `json:"requirements,omitempty"`
	ContactName        string     `json:"contactName"`
	ContactEmail       string     `json:"contactEmail"`
	ContactPhone       *string    `json:"contactPhone,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}
