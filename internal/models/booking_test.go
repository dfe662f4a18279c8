package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusConfirmed, BookingStatusCompleted, true},

		// Attendance outcomes
		{BookingStatusConfirmed, BookingStatusDisputed, true},
		{BookingStatusConfirmed, BookingStatusNoShowBoth, true},
		{BookingStatusConfirmed, BookingStatusNoShowGuide, true},
		{BookingStatusConfirmed, BookingStatusNoShowTraveler, true},

		// Admin resolution
		{BookingStatusDisputed, BookingStatusRefunded, true},
		{BookingStatusDisputed, BookingStatusCompleted, true},

		// Cancellation paths
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusCancelled, BookingStatusRefunded, true},

		// Invalid transitions
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusPending, BookingStatusDisputed, false},
		{BookingStatusDisputed, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusRefunded, false},
		{BookingStatusRefunded, BookingStatusCompleted, false},
		{BookingStatusNoShowBoth, BookingStatusRefunded, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{"nonexistent", BookingStatusConfirmed, false},
		{BookingStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted,
		BookingStatusDisputed, BookingStatusNoShowGuide, BookingStatusNoShowTraveler,
		BookingStatusNoShowBoth, BookingStatusCancelled, BookingStatusRefunded,
	}

	for _, status := range allStatuses {
		if _, ok := ValidBookingTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidBookingTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{
		BookingStatusCompleted, BookingStatusRefunded,
		BookingStatusNoShowGuide, BookingStatusNoShowTraveler, BookingStatusNoShowBoth,
	}
	for _, status := range terminal {
		transitions := ValidBookingTransitions[status]
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestBookingParties(t *testing.T) {
	b := &Booking{TravelerID: uuid.New(), GuideID: uuid.New()}

	if p, ok := b.PartyOf(b.TravelerID); !ok || p != PartyTraveler {
		t.Errorf("PartyOf(traveler) = %q, %v", p, ok)
	}
	if p, ok := b.PartyOf(b.GuideID); !ok || p != PartyGuide {
		t.Errorf("PartyOf(guide) = %q, %v", p, ok)
	}
	if _, ok := b.PartyOf(uuid.New()); ok {
		t.Error("stranger must not be a party")
	}
	if PartyGuide.Counterpart() != PartyTraveler || PartyTraveler.Counterpart() != PartyGuide {
		t.Error("Counterpart must swap sides")
	}
}

func TestSetAttendance(t *testing.T) {
	b := &Booking{TravelerAttendance: AttendancePending, GuideAttendance: AttendancePending}
	at := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	b.SetAttendance(PartyGuide, AttendanceNoShow, at)

	outcome, reportedAt := b.Attendance(PartyGuide)
	if outcome != AttendanceNoShow || reportedAt == nil || !reportedAt.Equal(at) {
		t.Errorf("guide attendance = %q at %v", outcome, reportedAt)
	}
	if outcome, _ := b.Attendance(PartyTraveler); outcome != AttendancePending {
		t.Errorf("traveler attendance changed to %q", outcome)
	}
}
