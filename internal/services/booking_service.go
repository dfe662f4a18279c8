package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/events"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/guidemeet/backend/internal/policy"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BookingService struct {
	Deps
	cfg *config.Config
}

func NewBookingService(deps Deps, cfg *config.Config) *BookingService {
	return &BookingService{Deps: deps, cfg: cfg}
}

// transition validates and performs a status transition with audit logging.
// The booking row is written with every other pending field change.
func transition(ctx context.Context, tx ledger.Tx, fx *effects, b *models.Booking, newStatus string, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidTransition(b.Status, newStatus) {
		return apperror.InvalidState("booking cannot move from %s to %s", b.Status, newStatus)
	}

	oldStatus := b.Status
	b.Status = newStatus
	if err := tx.Bookings().Update(ctx, b); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	if err := audit(ctx, tx, actorID, actorType, fmt.Sprintf("booking_status_%s_to_%s", oldStatus, newStatus), "booking", b.ID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	}); err != nil {
		return err
	}

	fx.statusChanged(events.EventBookingStatusChanged, "booking_id", b.ID, oldStatus, newStatus)
	return nil
}

// recordCompletion credits both sides' lifetime stats. It runs in the same
// transaction as the completion it belongs to.
func recordCompletion(ctx context.Context, tx ledger.Tx, b *models.Booking) error {
	if err := tx.Stats().RecordCompletion(ctx, b.GuideID, b.GuideEarnings); err != nil {
		return fmt.Errorf("record guide completion: %w", err)
	}
	if err := tx.Stats().RecordSpend(ctx, b.TravelerID, b.TotalPrice); err != nil {
		return fmt.Errorf("record traveler spend: %w", err)
	}
	return nil
}

func bookingPayload(b *models.Booking) map[string]any {
	return map[string]any{
		"booking_id": b.ID.String(),
		"status":     b.Status,
		"starts_at":  b.StartsAt,
	}
}

// CreateBooking books participants onto a tour. The traveler's money is
// held in escrow from the start; the guide then confirms.
func (s *BookingService) CreateBooking(ctx context.Context, travelerID, tourID uuid.UUID, participants int) (booking *models.Booking, err error) {
	ctx, span := startSpan(ctx, "BookingService.CreateBooking", attribute.String("tour.id", tourID.String()))
	defer endSpan(span, &err)

	if participants < 1 {
		return nil, apperror.Validation("participants must be at least 1")
	}

	now := s.clock()()
	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		tour, err := tx.Catalog().GetTour(ctx, tourID)
		if err != nil {
			return missing(err, "tour", tourID)
		}
		if tour.GuideID == travelerID {
			return apperror.Validation("guides cannot book their own tour")
		}
		if !tour.IsActive {
			return apperror.InvalidState("tour is not bookable")
		}
		if !now.Before(tour.StartsAt) {
			return apperror.InvalidState("tour has already started")
		}

		terms, err := policy.ComputeTerms(tour.Price*int64(participants), s.cfg.CatalogFeeBPS)
		if err != nil {
			return err
		}

		ok, err := tx.Catalog().DecrementSlots(ctx, tour.ID, participants)
		if err != nil {
			return fmt.Errorf("decrement slots: %w", err)
		}
		if !ok {
			return apperror.InvalidState("only %d slots left", tour.SlotsLeft)
		}

		b := &models.Booking{
			TravelerID:         travelerID,
			GuideID:            tour.GuideID,
			TourID:             &tour.ID,
			Participants:       participants,
			BasePrice:          terms.BasePrice,
			PlatformFee:        terms.PlatformFee,
			GuideEarnings:      terms.GuideEarnings,
			TotalPrice:         terms.TotalPrice,
			FeeBPS:             terms.FeeBPS,
			Currency:           tour.Currency,
			StartsAt:           tour.StartsAt,
			DurationClass:      models.DurationTour,
			DurationMinutes:    tour.DurationMinutes,
			Status:             models.BookingStatusPending,
			TravelerAttendance: models.AttendancePending,
			GuideAttendance:    models.AttendancePending,
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		if err := tx.Escrow().Create(ctx, &models.EscrowTransaction{
			BookingID: b.ID,
			Amount:    b.TotalPrice,
			Currency:  b.Currency,
			Status:    models.EscrowStatusHeld,
		}); err != nil {
			return fmt.Errorf("hold escrow: %w", err)
		}
		if err := audit(ctx, tx, &travelerID, models.ActorUser, "booking_created", "booking", b.ID, map[string]any{
			"tour_id":      tour.ID.String(),
			"participants": participants,
			"total_price":  b.TotalPrice,
		}); err != nil {
			return err
		}

		fx.notify(b.GuideID, notify.KindBookingCreated, bookingPayload(b))
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("tour_id", tourID.String()),
		zap.Int64("total_price", booking.TotalPrice))
	return booking, nil
}

// ConfirmBooking lets the guide accept a pending tour booking.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, actorID uuid.UUID) (booking *models.Booking, err error) {
	ctx, span := startSpan(ctx, "BookingService.ConfirmBooking", attribute.String("booking.id", bookingID.String()))
	defer endSpan(span, &err)

	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}
		if b.GuideID != actorID {
			return apperror.Forbidden("only the guide can confirm a booking")
		}
		if err := transition(ctx, tx, &fx, b, models.BookingStatusConfirmed, &actorID, models.ActorUser); err != nil {
			return err
		}
		fx.notify(b.TravelerID, notify.KindBookingConfirmed, bookingPayload(b))
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &fx)
	return booking, nil
}

// authorizeRead lets participants and admins read a booking.
func (s *BookingService) authorizeRead(ctx context.Context, bookingID, actorID uuid.UUID) error {
	if s.isAdmin(ctx, actorID) {
		return nil
	}
	ok, err := s.Identity.IsParticipant(ctx, bookingID, actorID)
	if err != nil {
		return missing(err, "booking", bookingID)
	}
	if !ok {
		return apperror.Forbidden("not a participant of this booking")
	}
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	if err := s.authorizeRead(ctx, bookingID, actorID); err != nil {
		return nil, err
	}
	var booking *models.Booking
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}
		booking = b
		return nil
	})
	return booking, err
}

func (s *BookingService) ListBookings(ctx context.Context, actorID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	if status != "" {
		if _, ok := models.ValidBookingTransitions[status]; !ok {
			return nil, apperror.Validation("unknown booking status %q", status)
		}
	}
	var out []models.Booking
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Bookings().ListByUser(ctx, actorID, status, limit, offset)
		return err
	})
	return out, err
}

func (s *BookingService) GetEscrow(ctx context.Context, bookingID, actorID uuid.UUID) (*models.EscrowWithEntries, error) {
	if err := s.authorizeRead(ctx, bookingID, actorID); err != nil {
		return nil, err
	}
	var out *models.EscrowWithEntries
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		e, err := tx.Escrow().GetByBooking(ctx, bookingID)
		if err != nil {
			return missing(err, "escrow for booking", bookingID)
		}
		entries, err := tx.Escrow().ListEntries(ctx, e.ID)
		if err != nil {
			return err
		}
		out = &models.EscrowWithEntries{EscrowTransaction: *e, Entries: entries}
		return nil
	})
	return out, err
}

// ListBookingEvents returns the booking's audit trail, newest first.
func (s *BookingService) ListBookingEvents(ctx context.Context, bookingID, actorID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if err := s.authorizeRead(ctx, bookingID, actorID); err != nil {
		return nil, err
	}
	var out []models.AuditLog
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Audit().ListByEntity(ctx, "booking", bookingID, limit, offset)
		return err
	})
	return out, err
}

type CancellationResult struct {
	Booking    *models.Booking          `json:"booking"`
	Quote      policy.CancellationQuote `json:"quote"`
	Settlement SettlementResult         `json:"settlement"`
}

// CancelBooking cancels before the meeting starts and settles the escrow
// per the cancellation tiers. A booking the guide never confirmed can also be
// withdrawn after its start, for a full refund. A full refund closes the
// booking as refunded.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, reason string) (res *CancellationResult, err error) {
	ctx, span := startSpan(ctx, "BookingService.CancelBooking", attribute.String("booking.id", bookingID.String()))
	defer endSpan(span, &err)

	now := s.clock()()
	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}
		party, ok := b.PartyOf(actorID)
		if !ok {
			return apperror.Forbidden("not a participant of this booking")
		}
		if !models.IsValidTransition(b.Status, models.BookingStatusCancelled) {
			return apperror.InvalidState("a %s booking cannot be cancelled", b.Status)
		}

		var quote policy.CancellationQuote
		switch {
		case now.Before(b.StartsAt):
			quote = policy.QuoteCancellation(party, b.StartsAt.Sub(now), b.TotalPrice, b.GuideEarnings)
		case b.Status == models.BookingStatusPending:
			// never confirmed, so there is no attendance to report
			quote = policy.QuoteUnconfirmed(b.TotalPrice)
		default:
			return apperror.InvalidState("meeting has already started, report attendance instead")
		}

		if reason != "" {
			b.CancellationReason = &reason
		}
		b.CancelledBy = &actorID
		b.CancelledAt = &now
		if err := transition(ctx, tx, &fx, b, models.BookingStatusCancelled, &actorID, models.ActorUser); err != nil {
			return err
		}

		settlement, err := settleInTx(ctx, tx, b, quote.Instruction(b.TotalPrice), &actorID, models.ActorUser, now)
		if err != nil {
			return err
		}
		if err := requireApplied(settlement); err != nil {
			return err
		}
		if settlement.EscrowStatus == models.EscrowStatusRefunded {
			if err := transition(ctx, tx, &fx, b, models.BookingStatusRefunded, &actorID, models.ActorUser); err != nil {
				return err
			}
		}

		if b.TourID != nil {
			if err := tx.Catalog().RestoreSlots(ctx, *b.TourID, b.Participants); err != nil {
				return fmt.Errorf("restore slots: %w", err)
			}
		}

		payload := bookingPayload(b)
		payload["refund_amount"] = quote.RefundAmount
		payload["guide_compensation"] = quote.GuideCompensation
		payload["cancelled_by"] = string(party)
		fx.notify(b.PartyID(party.Counterpart()), notify.KindBookingCancelled, payload)

		res = &CancellationResult{Booking: b, Quote: quote, Settlement: settlement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("tier", res.Quote.Tier),
		zap.Int64("refund", res.Quote.RefundAmount),
		zap.Int64("compensation", res.Quote.GuideCompensation))
	return res, nil
}

type AttendanceResult struct {
	Booking *models.Booking `json:"booking"`
	// Waiting is set while the counterpart has not reported yet.
	Waiting    bool              `json:"waiting"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}

// ReportAttendance records the caller's side of the meeting. Once both
// sides are in, the pair decides the booking's outcome and its settlement.
func (s *BookingService) ReportAttendance(ctx context.Context, bookingID, actorID uuid.UUID, outcome string) (res *AttendanceResult, err error) {
	ctx, span := startSpan(ctx, "BookingService.ReportAttendance",
		attribute.String("booking.id", bookingID.String()),
		attribute.String("attendance.outcome", outcome))
	defer endSpan(span, &err)

	if !models.IsValidOutcome(outcome) {
		return nil, apperror.Validation("outcome must be %q or %q", models.AttendanceConfirmed, models.AttendanceNoShow)
	}

	now := s.clock()()
	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}
		party, ok := b.PartyOf(actorID)
		if !ok {
			return apperror.Forbidden("not a participant of this booking")
		}
		if b.Status != models.BookingStatusConfirmed {
			return apperror.InvalidState("attendance cannot be reported on a %s booking", b.Status)
		}
		if now.Before(b.StartsAt) {
			return apperror.InvalidState("attendance cannot be reported before the meeting starts")
		}
		if own, _ := b.Attendance(party); own != models.AttendancePending {
			return apperror.InvalidState("attendance already reported")
		}

		b.SetAttendance(party, outcome, now)
		other, _ := b.Attendance(party.Counterpart())
		counterpart := b.PartyID(party.Counterpart())
		rec := policy.Reconcile(outcome, other)

		if err := audit(ctx, tx, &actorID, models.ActorUser, "attendance_reported", "booking", b.ID, map[string]any{
			"party":   string(party),
			"outcome": outcome,
		}); err != nil {
			return err
		}

		if rec.Waiting {
			if err := tx.Bookings().Update(ctx, b); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
			payload := bookingPayload(b)
			payload["reported_by"] = string(party)
			fx.notify(counterpart, notify.KindAttendanceReported, payload)
			res = &AttendanceResult{Booking: b, Waiting: true}
			return nil
		}

		if rec.Status == models.BookingStatusDisputed {
			b.DisputedAt = &now
		}
		if err := transition(ctx, tx, &fx, b, rec.Status, &actorID, models.ActorUser); err != nil {
			return err
		}

		res = &AttendanceResult{Booking: b}
		if rec.Settle != nil {
			settlement, err := settleInTx(ctx, tx, b, *rec.Settle, &actorID, models.ActorUser, now)
			if err != nil {
				return err
			}
			if err := requireApplied(settlement); err != nil {
				return err
			}
			res.Settlement = &settlement
		}
		if rec.Status == models.BookingStatusCompleted {
			if err := recordCompletion(ctx, tx, b); err != nil {
				return err
			}
		}

		kind := map[string]string{
			models.BookingStatusCompleted:  notify.KindBookingCompleted,
			models.BookingStatusDisputed:   notify.KindBookingDisputed,
			models.BookingStatusNoShowBoth: notify.KindBookingNoShow,
		}[rec.Status]
		fx.notify(b.TravelerID, kind, bookingPayload(b))
		fx.notify(b.GuideID, kind, bookingPayload(b))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("attendance reported",
		zap.String("booking_id", bookingID.String()),
		zap.String("outcome", outcome),
		zap.Bool("waiting", res.Waiting),
		zap.String("status", res.Booking.Status))
	return res, nil
}

type ResolveDisputeInput struct {
	Resolution string
	Note       string
}

type ResolutionResult struct {
	Booking    *models.Booking  `json:"booking"`
	Settlement SettlementResult `json:"settlement"`
}

// ResolveDispute is the only way out of disputed. The admin's decision is
// forced through settlement and recorded on the booking.
func (s *BookingService) ResolveDispute(ctx context.Context, bookingID, actorID uuid.UUID, in ResolveDisputeInput) (res *ResolutionResult, err error) {
	ctx, span := startSpan(ctx, "BookingService.ResolveDispute",
		attribute.String("booking.id", bookingID.String()),
		attribute.String("dispute.resolution", in.Resolution))
	defer endSpan(span, &err)

	var (
		instruction policy.Instruction
		target      string
	)
	switch in.Resolution {
	case models.ResolutionRefundTraveler:
		instruction, target = policy.RefundFull(), models.BookingStatusRefunded
	case models.ResolutionPayGuide:
		instruction, target = policy.Release(), models.BookingStatusCompleted
	default:
		return nil, apperror.Validation("resolution must be %s or %s", models.ResolutionRefundTraveler, models.ResolutionPayGuide)
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	now := s.clock()()
	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return missing(err, "booking", bookingID)
		}
		if b.Status != models.BookingStatusDisputed {
			return apperror.InvalidState("booking is %s, not disputed", b.Status)
		}

		b.Resolution = &in.Resolution
		b.ResolvedBy = &actorID
		b.ResolvedAt = &now
		if in.Note != "" {
			b.ResolutionNote = &in.Note
		}
		if err := transition(ctx, tx, &fx, b, target, &actorID, models.ActorAdmin); err != nil {
			return err
		}

		settlement, err := settleInTx(ctx, tx, b, instruction, &actorID, models.ActorAdmin, now)
		if err != nil {
			return err
		}
		if err := requireApplied(settlement); err != nil {
			return err
		}
		if target == models.BookingStatusCompleted {
			if err := recordCompletion(ctx, tx, b); err != nil {
				return err
			}
		}

		payload := bookingPayload(b)
		payload["resolution"] = in.Resolution
		fx.notify(b.TravelerID, notify.KindDisputeResolved, payload)
		fx.notify(b.GuideID, notify.KindDisputeResolved, payload)

		res = &ResolutionResult{Booking: b, Settlement: settlement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("dispute resolved",
		zap.String("booking_id", bookingID.String()),
		zap.String("resolution", in.Resolution),
		zap.String("admin_id", actorID.String()))
	return res, nil
}
