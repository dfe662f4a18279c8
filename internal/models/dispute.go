package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute recommendations
const (
	RecommendFavorProvider  = "FAVOR_PROVIDER"
	RecommendFavorRequester = "FAVOR_REQUESTER"
	RecommendManualReview   = "MANUAL_REVIEW"
)

// DisputeEvidence is everything the scorer looks at for one booking.
type DisputeEvidence struct {
	BookingID          uuid.UUID    `json:"booking_id"`
	Guide              PartyHistory `json:"guide"`
	Traveler           PartyHistory `json:"traveler"`
	MeetingDayMessages int          `json:"meeting_day_messages"`
	GuideAttendance    string       `json:"guide_attendance"`
	GuideReportedAt    *time.Time   `json:"guide_reported_at,omitempty"`
	TravelerAttendance string       `json:"traveler_attendance"`
	TravelerReportedAt *time.Time   `json:"traveler_reported_at,omitempty"`
}

type ScoreFactor struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// DisputeReport is deterministic for a given evidence set.
type DisputeReport struct {
	BookingID       uuid.UUID       `json:"booking_id"`
	RawScore        int             `json:"raw_score"`
	ConfidenceScore int             `json:"confidence_score"`
	Recommendation  string          `json:"recommendation"`
	Factors         []ScoreFactor   `json:"factors"`
	Evidence        DisputeEvidence `json:"evidence"`
}
