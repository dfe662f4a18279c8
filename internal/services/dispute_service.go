package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/policy"
	"go.opentelemetry.io/otel/attribute"
)

// DisputeService gathers evidence for admins. It never writes.
type DisputeService struct {
	Deps
}

func NewDisputeService(deps Deps) *DisputeService {
	return &DisputeService{Deps: deps}
}

// GetDisputeEvidence scores the booking's dispute from both parties'
// history and whether they talked on the meeting day.
func (s *DisputeService) GetDisputeEvidence(ctx context.Context, bookingID, actorID uuid.UUID) (report *models.DisputeReport, err error) {
	ctx, span := startSpan(ctx, "DisputeService.GetDisputeEvidence", attribute.String("booking.id", bookingID.String()))
	defer endSpan(span, &err)

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var ev models.DisputeEvidence
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}

		guide, err := tx.Bookings().History(ctx, b.GuideID, models.PartyGuide, b.ID)
		if err != nil {
			return fmt.Errorf("guide history: %w", err)
		}
		traveler, err := tx.Bookings().History(ctx, b.TravelerID, models.PartyTraveler, b.ID)
		if err != nil {
			return fmt.Errorf("traveler history: %w", err)
		}

		since, until := meetingDay(b.StartsAt)
		msgs, err := tx.Conversations().MessagesBetween(ctx, b.TravelerID, b.GuideID, since, until)
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}

		ev = models.DisputeEvidence{
			BookingID:          b.ID,
			Guide:              guide,
			Traveler:           traveler,
			MeetingDayMessages: len(msgs),
			GuideAttendance:    b.GuideAttendance,
			GuideReportedAt:    b.GuideReportedAt,
			TravelerAttendance: b.TravelerAttendance,
			TravelerReportedAt: b.TravelerReportedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r := policy.ScoreDispute(ev)
	return &r, nil
}

// meetingDay returns the UTC calendar day containing t as [start, end).
func meetingDay(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
