package models

import (
	"time"

	"github.com/google/uuid"
)

// VenueStatus values. Only published venues are matched.
const (
	VenueStatusDraft     = "draft"
	VenueStatusPublished = "published"
	VenueStatusHidden    = "hidden"
)

// Manager is the user responsible for a venue.
type Manager struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Venue is a listed venue as read from the catalog.
type Venue struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Status           string     `json:"status,omitempty"`
	ContactEmail     *string    `json:"contactEmail"`
	Address          string     `json:"address,omitempty"`
	District         *string    `json:"district"`
	CapacitySeated   *int       `json:"capacitySeated"`
	CapacityStanding *int       `json:"capacityStanding"`
	ParentID         *uuid.UUID `json:"parentId,omitempty"`
	Manager          *Manager   `json:"manager"`
	UpdatedAt        time.Time  `json:"-"`
}

// IsSubVenue reports whether the venue belongs to a parent venue.
func (v *Venue) IsSubVenue() bool { return v.ParentID != nil }

// EffectiveCapacity is the larger of the seated and standing capacity, with
// unknown values counted as zero.
func (v *Venue) EffectiveCapacity() int {
	seated, standing := 0, 0
	if v.CapacitySeated != nil {
		seated = *v.CapacitySeated
	}
	if v.CapacityStanding != nil {
		standing = *v.CapacityStanding
	}
	return max(seated, standing)
}
