package services

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// RequestService negotiates bespoke bookings: a traveler asks, the guide
// answers, the traveler pays. Every step is time-boxed and a request whose
// timer ran out is flipped to expired before anything else happens to it.
type RequestService struct {
	Deps
	cfg *config.Config
}

func NewRequestService(deps Deps, cfg *config.Config) *RequestService {
	return &RequestService{Deps: deps, cfg: cfg}
}

type CreateRequestInput struct {
	GuideID       uuid.UUID
	StartsAt      time.Time
	DurationClass string
	Hours         int // hourly only
	BasePrice     int64
	Message       string
}

func (s *RequestService) setStatus(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, newStatus string, actorID *uuid.UUID, actorType string, meta map[string]any) error {
	if !models.IsValidRequestTransition(r.Status, newStatus) {
		return apperror.InvalidState("request cannot move from %s to %s", r.Status, newStatus)
	}
	oldStatus := r.Status
	r.Status = newStatus
	r.UpdatedAt = s.clock()()
	if err := tx.Requests().Update(ctx, r); err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta["old_status"], meta["new_status"] = oldStatus, newStatus
	if err := audit(ctx, tx, actorID, actorType, fmt.Sprintf("request_status_%s_to_%s", oldStatus, newStatus), "booking_request", r.ID, meta); err != nil {
		return err
	}

	fx.statusChanged(events.EventRequestStatusChanged, "request_id", r.ID, oldStatus, newStatus)
	return nil
}

// expireIfDue is the single expiry entry point, shared by reads,
// transitions and the sweep.
func (s *RequestService) expireIfDue(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, now time.Time) (bool, error) {
	target, due := r.ExpiryStatus(now)
	if !due {
		return false, nil
	}
	if err := s.setStatus(ctx, tx, fx, r, target, nil, models.ActorSystem, nil); err != nil {
		return false, err
	}

	payload := requestPayload(r)
	fx.notify(r.TravelerID, notify.KindRequestExpired, payload)
	fx.notify(r.GuideID, notify.KindRequestExpired, payload)
	return true, nil
}

func requestPayload(r *models.BookingRequest) map[string]any {
	return map[string]any{
		"request_id": r.ID.String(),
		"status":     r.Status,
		"starts_at":  r.StartsAt,
	}
}

// checkConflicts fails when the guide already has a live booking or an
// active tour overlapping [start, end). It holds the guide's calendar lock
// for the rest of tx, so a booking created after the check cannot race
// another one into the same slot.
func checkConflicts(ctx context.Context, tx ledger.Tx, guideID uuid.UUID, start, end time.Time) error {
	if err := tx.LockGuideCalendar(ctx, guideID); err != nil {
		return err
	}
	bookings, err := tx.Bookings().ListActiveForGuide(ctx, guideID, start, end)
	if err != nil {
		return fmt.Errorf("load guide bookings: %w", err)
	}
	for _, b := range bookings {
		if policy.Overlaps(start, end, b.StartsAt, b.EndsAt()) {
			return apperror.InvalidState("guide already has a booking at %s", b.StartsAt.Format(time.RFC3339))
		}
	}

	tours, err := tx.Catalog().ListGuideTours(ctx, guideID, start, end)
	if err != nil {
		return fmt.Errorf("load guide tours: %w", err)
	}
	for _, t := range tours {
		if policy.Overlaps(start, end, t.StartsAt, t.EndsAt()) {
			return apperror.InvalidState("guide runs a tour at %s", t.StartsAt.Format(time.RFC3339))
		}
	}
	return nil
}

func (s *RequestService) CreateRequest(ctx context.Context, travelerID uuid.UUID, in CreateRequestInput) (req *models.BookingRequest, err error) {
	ctx, span := startSpan(ctx, "RequestService.CreateRequest", attribute.String("guide.id", in.GuideID.String()))
	defer endSpan(span, &err)

	now := s.clock()()
	if in.GuideID == uuid.Nil {
		return nil, apperror.Validation("guide_id is required")
	}
	if in.GuideID == travelerID {
		return nil, apperror.Validation("cannot request a booking with yourself")
	}
	if in.BasePrice <= 0 {
		return nil, apperror.Validation("base price must be positive")
	}
	length, err := policy.MeetingLength(in.DurationClass, in.Hours)
	if err != nil {
		return nil, err
	}
	if !in.StartsAt.After(now) {
		return nil, apperror.Validation("meeting time must be in the future")
	}

	role, err := s.Identity.RoleOf(ctx, in.GuideID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperror.NotFound("guide %s not found", in.GuideID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve guide role: %w", err)
	}
	if role != models.RoleGuide {
		return nil, apperror.Validation("user %s is not a guide", in.GuideID)
	}

	start := in.StartsAt.UTC()
	end := start.Add(length)
	meetingDate, _ := meetingDay(start)

	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		dup, err := tx.Requests().HasPending(ctx, travelerID, in.GuideID, meetingDate)
		if err != nil {
			return fmt.Errorf("check pending requests: %w", err)
		}
		if dup {
			return apperror.InvalidState("a pending request to this guide for that date already exists")
		}
		if err := checkConflicts(ctx, tx, in.GuideID, start, end); err != nil {
			return err
		}

		r := &models.BookingRequest{
			TravelerID:      travelerID,
			GuideID:         in.GuideID,
			MeetingDate:     meetingDate,
			StartsAt:        start,
			DurationClass:   in.DurationClass,
			DurationMinutes: int(length / time.Minute),
			BasePrice:       in.BasePrice,
			Currency:        s.cfg.Currency,
			Status:          models.RequestStatusPending,
			ExpiresAt:       now.Add(s.cfg.RequestTTL),
		}
		if in.Message != "" {
			r.Message = &in.Message
		}
		if err := tx.Requests().Create(ctx, r); err != nil {
			if errors.Is(err, ledger.ErrDuplicate) {
				return apperror.InvalidState("a pending request to this guide for that date already exists")
			}
			return fmt.Errorf("create request: %w", err)
		}
		if err := audit(ctx, tx, &travelerID, models.ActorUser, "request_created", "booking_request", r.ID, map[string]any{
			"guide_id":   in.GuideID.String(),
			"base_price": in.BasePrice,
		}); err != nil {
			return err
		}

		fx.notify(r.GuideID, notify.KindRequestCreated, requestPayload(r))
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("booking request created",
		zap.String("request_id", req.ID.String()),
		zap.String("guide_id", in.GuideID.String()),
		zap.Time("expires_at", req.ExpiresAt))
	return req, nil
}

// GetRequest applies lazy expiry before returning, so a caller never sees
// a request whose timer has run out in a live status.
func (s *RequestService) GetRequest(ctx context.Context, requestID, actorID uuid.UUID) (req *models.BookingRequest, err error) {
	ctx, span := startSpan(ctx, "RequestService.GetRequest", attribute.String("request.id", requestID.String()))
	defer endSpan(span, &err)

	admin := s.isAdmin(ctx, actorID)
	now := s.clock()()
	var fx effects
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		r, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return missing(err, "request", requestID)
		}
		if !r.IsParticipant(actorID) && !admin {
			return apperror.Forbidden("not a participant of this request")
		}
		if _, err := s.expireIfDue(ctx, tx, &fx, r, now); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, &fx)
	return req, nil
}

func (s *RequestService) ListRequests(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.BookingRequest, error) {
	var out []models.BookingRequest
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Requests().ListByUser(ctx, actorID, limit, offset)
		return err
	})
	return out, err
}

// mutate runs fn on a locked, expiry-checked request. Expiry is applied
// before authorize, and the flip commits even when authorize then refuses
// the caller. An expired request fails with Expired.
func (s *RequestService) mutate(ctx context.Context, requestID uuid.UUID, authorize func(*models.BookingRequest) error, fn func(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, now time.Time) error) error {
	now := s.clock()()
	var (
		fx      effects
		expired bool
		denied  error
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		r, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return missing(err, "request", requestID)
		}
		flipped, err := s.expireIfDue(ctx, tx, &fx, r, now)
		if err != nil {
			return err
		}
		if err := authorize(r); err != nil {
			denied = err
			return nil
		}
		if flipped || r.IsExpired() {
			expired = true
			return nil
		}
		return fn(ctx, tx, &fx, r, now)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, &fx)
	if denied != nil {
		return denied
	}
	if expired {
		return apperror.Expired("request %s has expired", requestID)
	}
	return nil
}

// RespondToRequest lets the guide accept or reject a pending request.
// Accepting opens the payment window.
func (s *RequestService) RespondToRequest(ctx context.Context, requestID, actorID uuid.UUID, accept bool, note string) (req *models.BookingRequest, err error) {
	ctx, span := startSpan(ctx, "RequestService.RespondToRequest",
		attribute.String("request.id", requestID.String()),
		attribute.Bool("request.accept", accept))
	defer endSpan(span, &err)

	err = s.mutate(ctx, requestID,
		func(r *models.BookingRequest) error {
			if r.GuideID != actorID {
				return apperror.Forbidden("only the guide can respond to this request")
			}
			return nil
		},
		func(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, now time.Time) error {
			if r.Status != models.RequestStatusPending {
				return apperror.InvalidState("request is already %s", r.Status)
			}
			r.RespondedAt = &now
			if note != "" {
				r.ResponseNote = &note
			}
			target, kind := models.RequestStatusRejected, notify.KindRequestRejected
			if accept {
				target, kind = models.RequestStatusAccepted, notify.KindRequestAccepted
				r.PaymentDeadline = ptr(now.Add(s.cfg.PaymentWindow))
			}
			if err := s.setStatus(ctx, tx, fx, r, target, &actorID, models.ActorUser, nil); err != nil {
				return err
			}
			payload := requestPayload(r)
			if r.PaymentDeadline != nil {
				payload["payment_deadline"] = *r.PaymentDeadline
			}
			fx.notify(r.TravelerID, kind, payload)
			req = r
			return nil
		})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// PayRequest turns an accepted request into a confirmed booking with the
// money held in escrow. Request and booking change in one transaction.
func (s *RequestService) PayRequest(ctx context.Context, requestID, actorID uuid.UUID) (booking *models.Booking, err error) {
	ctx, span := startSpan(ctx, "RequestService.PayRequest", attribute.String("request.id", requestID.String()))
	defer endSpan(span, &err)

	err = s.mutate(ctx, requestID,
		func(r *models.BookingRequest) error {
			if r.TravelerID != actorID {
				return apperror.Forbidden("only the traveler can pay for this request")
			}
			return nil
		},
		func(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, now time.Time) error {
			if r.Status != models.RequestStatusAccepted {
				return apperror.InvalidState("only accepted requests can be paid, this one is %s", r.Status)
			}
			if err := checkConflicts(ctx, tx, r.GuideID, r.StartsAt, r.EndsAt()); err != nil {
				return err
			}

			terms, err := policy.ComputeTerms(r.BasePrice, s.cfg.BespokeFeeBPS)
			if err != nil {
				return err
			}
			b := &models.Booking{
				TravelerID:         r.TravelerID,
				GuideID:            r.GuideID,
				RequestID:          &r.ID,
				Participants:       1,
				BasePrice:          terms.BasePrice,
				PlatformFee:        terms.PlatformFee,
				GuideEarnings:      terms.GuideEarnings,
				TotalPrice:         terms.TotalPrice,
				FeeBPS:             terms.FeeBPS,
				Currency:           r.Currency,
				StartsAt:           r.StartsAt,
				DurationClass:      r.DurationClass,
				DurationMinutes:    r.DurationMinutes,
				Status:             models.BookingStatusConfirmed,
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
			if err := audit(ctx, tx, &actorID, models.ActorUser, "booking_created", "booking", b.ID, map[string]any{
				"request_id":  r.ID.String(),
				"total_price": b.TotalPrice,
			}); err != nil {
				return err
			}

			r.BookingID = &b.ID
			if err := s.setStatus(ctx, tx, fx, r, models.RequestStatusPaid, &actorID, models.ActorUser, map[string]any{
				"booking_id": b.ID.String(),
			}); err != nil {
				return err
			}

			payload := requestPayload(r)
			payload["booking_id"] = b.ID.String()
			fx.notify(r.GuideID, notify.KindRequestPaid, payload)
			booking = b
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.Log.Info("booking request paid",
		zap.String("request_id", requestID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.Int64("total_price", booking.TotalPrice))
	return booking, nil
}

// CancelRequest withdraws an accepted, unpaid request. Either side may.
func (s *RequestService) CancelRequest(ctx context.Context, requestID, actorID uuid.UUID, reason string) (req *models.BookingRequest, err error) {
	ctx, span := startSpan(ctx, "RequestService.CancelRequest", attribute.String("request.id", requestID.String()))
	defer endSpan(span, &err)

	err = s.mutate(ctx, requestID,
		func(r *models.BookingRequest) error {
			if !r.IsParticipant(actorID) {
				return apperror.Forbidden("not a participant of this request")
			}
			return nil
		},
		func(ctx context.Context, tx ledger.Tx, fx *effects, r *models.BookingRequest, now time.Time) error {
			if r.Status != models.RequestStatusAccepted {
				return apperror.InvalidState("only accepted requests can be cancelled, this one is %s", r.Status)
			}
			if err := s.setStatus(ctx, tx, fx, r, models.RequestStatusCancelled, &actorID, models.ActorUser, map[string]any{
				"reason": reason,
			}); err != nil {
				return err
			}
			counterpart := r.GuideID
			if actorID == r.GuideID {
				counterpart = r.TravelerID
			}
			fx.notify(counterpart, notify.KindRequestCancelled, requestPayload(r))
			req = r
			return nil
		})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SweepExpired flips every request whose timer has run out, batch at a
// time, through the same path lazy expiry uses. It returns how many
// requests it flipped.
func (s *RequestService) SweepExpired(ctx context.Context, batchSize int) (flipped int, err error) {
	ctx, span := startSpan(ctx, "RequestService.SweepExpired")
	defer endSpan(span, &err)

	if batchSize <= 0 {
		batchSize = s.cfg.SweepBatchSize
	}

	var ids []uuid.UUID
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		ids, err = tx.Requests().ListDue(ctx, s.clock()(), batchSize)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list due requests: %w", err)
	}

	var errs []error
	for _, id := range ids {
		ok, err := s.expireOne(ctx, id)
		if err != nil {
			s.Log.Warn("failed to expire request", zap.String("request_id", id.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			flipped++
		}
	}
	span.SetAttributes(attribute.Int("sweep.flipped", flipped))
	return flipped, errors.Join(errs...)
}

func (s *RequestService) expireOne(ctx context.Context, requestID uuid.UUID) (bool, error) {
	now := s.clock()()
	var (
		fx      effects
		flipped bool
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		r, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return missing(err, "request", requestID)
		}
		flipped, err = s.expireIfDue(ctx, tx, &fx, r, now)
		return err
	})
	if err != nil {
		return false, err
	}
	s.publish(ctx, &fx)
	return flipped, nil
}
