package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleTraveler = "traveler"
	RoleGuide    = "guide"
	RoleAdmin    = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Role         string    `json:"role"`
	DisplayName  *string   `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// ProfileStats are lifetime counters updated when a booking completes.
type ProfileStats struct {
	UserID             uuid.UUID `json:"user_id"`
	LifetimeEarnings   int64     `json:"lifetime_earnings"`
	LifetimeSpend      int64     `json:"lifetime_spend"`
	BookingsAsGuide    int       `json:"bookings_as_guide"`
	BookingsAsTraveler int       `json:"bookings_as_traveler"`
	UpdatedAt          time.Time `json:"updated_at"`
}
