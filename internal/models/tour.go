package models

import (
	"time"

	"github.com/google/uuid"
)

// Tour is a catalog item: a scheduled group outing a guide sells at a
// fixed per-participant price.
type Tour struct {
	ID              uuid.UUID `json:"id"`
	GuideID         uuid.UUID `json:"guide_id"`
	Title           string    `json:"title"`
	Price           int64     `json:"price"`
	Currency        string    `json:"currency"`
	MaxParticipants int       `json:"max_participants"`
	SlotsLeft       int       `json:"slots_left"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (t *Tour) EndsAt() time.Time {
	return t.StartsAt.Add(time.Duration(t.DurationMinutes) * time.Minute)
}
