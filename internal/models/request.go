package models

import (
	"time"

	"github.com/martinmuron/prostormat-sub002/internal/capacity"
)

// MatchCriteria is the part of an inquiry the matcher looks at.
type MatchCriteria struct {
	GuestCount         capacity.GuestCount `json:"guestCount"`
	LocationPreference *string             `json:"locationPreference,omitempty"`
	// District is a structured district the caller already knows. It is used
	// when the location preference is empty or cannot be resolved.
	District *string `json:"district,omitempty"`
}

// Request is an inbound "I need a venue" inquiry.
type Request struct {
	MatchCriteria
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	EventType    string     `json:"eventType,omitempty"`
	EventDate    *time.Time `json:"eventDate,omitempty"`
	Requirements *string    `json:"requirements,omitempty"`
	ContactName  string     `json:"contactName" binding:"required"`
	ContactEmail string     `json:"contactEmail" binding:"required,email"`
	ContactPhone *string    `json:"contactPhone,omitempty"`
}

// RequestFromEventRequest rebuilds an inquiry from a historical record.
func RequestFromEventRequest(er *EventRequest) Request {
	var guests capacity.GuestCount
	if er.GuestCount != nil {
		guests = capacity.Parse(*er.GuestCount)
	}
	return Request{
		MatchCriteria: MatchCriteria{
			GuestCount:         guests,
			LocationPreference: er.LocationPreference,
		},
		Title:        er.Title,
		Description:  er.Description,
		EventType:    er.EventType,
		EventDate:    er.EventDate,
		Requirements: er.Requirements,
		ContactName:  er.ContactName,
		ContactEmail: er.ContactEmail,
		ContactPhone: er.ContactPhone,
	}
}

// RequestFromBroadcast rebuilds the inquiry a broadcast echoes to venues.
// The guest count is the stored record value.
func RequestFromBroadcast(b *Broadcast) Request {
	return Request{
		MatchCriteria: MatchCriteria{
			GuestCount:         capacity.NewNumeric(b.GuestCount),
			LocationPreference: b.LocationPreference,
		},
		Title:        b.Title,
		Description:  b.Description,
		EventType:    b.EventType,
		EventDate:    b.EventDate,
		Requirements: b.Requirements,
		ContactName:  b.ContactName,
		ContactEmail: b.ContactEmail,
		ContactPhone: b.ContactPhone,
	}
}
