package models

// Role is the role claim carried by access tokens.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleVenueManager Role = "venue_manager"
	RoleUser         Role = "user"
)
