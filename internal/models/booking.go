package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking statuses
const (
	BookingStatusPending        = "pending"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusCompleted      = "completed"
	BookingStatusDisputed       = "disputed"
	BookingStatusNoShowGuide    = "no_show_guide"
	BookingStatusNoShowTraveler = "no_show_traveler"
	BookingStatusNoShowBoth     = "no_show_both"
	BookingStatusCancelled      = "cancelled"
	BookingStatusRefunded       = "refunded"
)

// Valid state transitions: from -> []to
var ValidBookingTransitions = map[string][]string{
	BookingStatusPending: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {
		BookingStatusCompleted, BookingStatusDisputed,
		BookingStatusNoShowGuide, BookingStatusNoShowTraveler, BookingStatusNoShowBoth,
		BookingStatusCancelled,
	},
	BookingStatusDisputed:       {BookingStatusRefunded, BookingStatusCompleted},
	BookingStatusCancelled:      {BookingStatusRefunded},
	BookingStatusCompleted:      {},
	BookingStatusNoShowGuide:    {},
	BookingStatusNoShowTraveler: {},
	BookingStatusNoShowBoth:     {},
	BookingStatusRefunded:       {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidBookingTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Attendance outcomes, one per side of a booking.
const (
	AttendancePending   = "pending"
	AttendanceConfirmed = "confirmed"
	AttendanceNoShow    = "no_show"
)

func IsValidOutcome(outcome string) bool {
	return outcome == AttendanceConfirmed || outcome == AttendanceNoShow
}

// Party identifies which side of a booking an actor is on.
type Party string

const (
	PartyTraveler Party = "traveler"
	PartyGuide    Party = "guide"
)

func (p Party) Counterpart() Party {
	if p == PartyTraveler {
		return PartyGuide
	}
	return PartyTraveler
}

// Duration classes
const (
	DurationHalfDay = "half_day"
	DurationFullDay = "full_day"
	DurationHourly  = "hourly"
	DurationTour    = "tour" // fixed by the tour's schedule
)

// Dispute resolutions
const (
	ResolutionRefundTraveler = "REFUND_TRAVELER"
	ResolutionPayGuide       = "PAY_GUIDE"
)

type Booking struct {
	ID           uuid.UUID  `json:"id"`
	TravelerID   uuid.UUID  `json:"traveler_id"`
	GuideID      uuid.UUID  `json:"guide_id"`
	TourID       *uuid.UUID `json:"tour_id,omitempty"`
	RequestID    *uuid.UUID `json:"request_id,omitempty"`
	Participants int        `json:"participants"`

	// Commercial terms, fixed at creation.
	BasePrice     int64  `json:"base_price"`
	PlatformFee   int64  `json:"platform_fee"`
	GuideEarnings int64  `json:"guide_earnings"`
	TotalPrice    int64  `json:"total_price"`
	FeeBPS        int    `json:"fee_bps"`
	Currency      string `json:"currency"`

	StartsAt        time.Time `json:"starts_at"`
	DurationClass   string    `json:"duration_class"`
	DurationMinutes int       `json:"duration_minutes"`

	Status string `json:"status"`

	TravelerAttendance string     `json:"traveler_attendance"`
	TravelerReportedAt *time.Time `json:"traveler_reported_at,omitempty"`
	GuideAttendance    string     `json:"guide_attendance"`
	GuideReportedAt    *time.Time `json:"guide_reported_at,omitempty"`

	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	DisputedAt     *time.Time `json:"disputed_at,omitempty"`
	Resolution     *string    `json:"resolution,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) EndsAt() time.Time {
	return b.StartsAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// PartyOf reports which side userID is on, if any.
func (b *Booking) PartyOf(userID uuid.UUID) (Party, bool) {
	switch userID {
	case b.TravelerID:
		return PartyTraveler, true
	case b.GuideID:
		return PartyGuide, true
	}
	return "", false
}

func (b *Booking) PartyID(p Party) uuid.UUID {
	if p == PartyTraveler {
		return b.TravelerID
	}
	return b.GuideID
}

func (b *Booking) Attendance(p Party) (string, *time.Time) {
	if p == PartyTraveler {
		return b.TravelerAttendance, b.TravelerReportedAt
	}
	return b.GuideAttendance, b.GuideReportedAt
}

func (b *Booking) SetAttendance(p Party, outcome string, at time.Time) {
	if p == PartyTraveler {
		b.TravelerAttendance = outcome
		b.TravelerReportedAt = &at
		return
	}
	b.GuideAttendance = outcome
	b.GuideReportedAt = &at
}

// IsActive reports whether the booking still occupies the guide's calendar.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// PartyHistory aggregates past bookings of one user in one role.
type PartyHistory struct {
	Completed int `json:"completed"`
	Disputes  int `json:"disputes"`
	NoShows   int `json:"no_shows"`
}

func (h PartyHistory) Incidents() int {
	return h.Disputes + h.NoShows
}
