package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastStatus values.
const (
	BroadcastStatusPending    = "pending"
	BroadcastStatusSent       = "sent"
	BroadcastStatusFailed     = "failed"
	BroadcastStatusBackfilled = "backfilled"
)

// BroadcastLogStatus values. Logs start pending; the rest are terminal.
const (
	BroadcastLogStatusPending    = "pending"
	BroadcastLogStatusSent       = "sent"
	BroadcastLogStatusFailed     = "failed"
	BroadcastLogStatusBackfilled = "backfilled"
)

// Broadcast fans one inquiry out to a snapshot of matched venues.
type Broadcast struct {
	ID                 uuid.UUID      `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	EventType          string         `json:"eventType"`
	EventDate          *time.Time     `json:"eventDate,omitempty"`
	GuestCount         int            `json:"guestCount"`
	LocationPreference *string        `json:"locationPreference,omitempty"`
	Requirements       *string        `json:"requirements,omitempty"`
	ContactName        string         `json:"contactName"`
	ContactEmail       string         `json:"contactEmail"`
	ContactPhone       *string        `json:"contactPhone,omitempty"`
	SentVenues         []uuid.UUID    `json:"sentVenues"`
	Status             string         `json:"status"`
	SentCount          int            `json:"sentCount"`
	EventRequestID     *uuid.UUID     `json:"eventRequestId,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	Logs               []BroadcastLog `json:"logs,omitempty"`
}

// BroadcastLog tracks delivery of a broadcast to one venue.
type BroadcastLog struct {
	ID           uuid.UUID  `json:"id"`
	BroadcastID  uuid.UUID  `json:"broadcastId"`
	VenueID      uuid.UUID  `json:"venueId"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
