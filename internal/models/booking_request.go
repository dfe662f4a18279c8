package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking request statuses
const (
	RequestStatusPending        = "pending"
	RequestStatusAccepted       = "accepted"
	RequestStatusRejected       = "rejected"
	RequestStatusExpired        = "expired"
	RequestStatusPaid           = "paid"
	RequestStatusPaymentExpired = "payment_expired"
	RequestStatusCancelled      = "cancelled"
)

var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:        {RequestStatusAccepted, RequestStatusRejected, RequestStatusExpired},
	RequestStatusAccepted:       {RequestStatusPaid, RequestStatusPaymentExpired, RequestStatusCancelled},
	RequestStatusRejected:       {},
	RequestStatusExpired:        {},
	RequestStatusPaid:           {},
	RequestStatusPaymentExpired: {},
	RequestStatusCancelled:      {},
}

func IsValidRequestTransition(from, to string) bool {
	for _, s := range ValidRequestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BookingRequest is a traveler's bespoke ask to a guide. It becomes a
// booking only once accepted and paid.
type BookingRequest struct {
	ID              uuid.UUID  `json:"id"`
	TravelerID      uuid.UUID  `json:"traveler_id"`
	GuideID         uuid.UUID  `json:"guide_id"`
	MeetingDate     time.Time  `json:"meeting_date"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationClass   string     `json:"duration_class"`
	DurationMinutes int        `json:"duration_minutes"`
	BasePrice       int64      `json:"base_price"`
	Currency        string     `json:"currency"`
	Message         *string    `json:"message,omitempty"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ResponseNote    *string    `json:"response_note,omitempty"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (r *BookingRequest) EndsAt() time.Time {
	return r.StartsAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// IsDue reports whether the request's current timer has run out at now.
// Pending requests expire at ExpiresAt, accepted ones at PaymentDeadline.
func (r *BookingRequest) IsDue(now time.Time) bool {
	_, due := r.ExpiryStatus(now)
	return due
}

// ExpiryStatus returns the status a due request moves to: expired for a
// pending request, payment_expired for an accepted one.
func (r *BookingRequest) ExpiryStatus(now time.Time) (string, bool) {
	switch r.Status {
	case RequestStatusPending:
		if !now.Before(r.ExpiresAt) {
			return RequestStatusExpired, true
		}
	case RequestStatusAccepted:
		if r.PaymentDeadline != nil && !now.Before(*r.PaymentDeadline) {
			return RequestStatusPaymentExpired, true
		}
	}
	return "", false
}

// IsExpired reports whether the request ended by running out of time.
func (r *BookingRequest) IsExpired() bool {
	return r.Status == RequestStatusExpired || r.Status == RequestStatusPaymentExpired
}

func (r *BookingRequest) IsParticipant(userID uuid.UUID) bool {
	return userID == r.TravelerID || userID == r.GuideID
}
