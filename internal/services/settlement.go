package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/guidemeet/backend/internal/policy"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SettlementResult reports what a settle call did. Applied is false when
// the escrow had already left held; EscrowStatus is then its existing
// status. BookingStatus is only set by the admin entry point.
type SettlementResult struct {
	EscrowStatus  string               `json:"escrow_status"`
	Applied       bool                 `json:"applied"`
	BookingStatus string               `json:"booking_status,omitempty"`
	Entries       []models.LedgerEntry `json:"entries,omitempty"`
}

// requireApplied fails a lifecycle operation whose escrow was already
// settled elsewhere, so the booking never reports money that did not move.
func requireApplied(r SettlementResult) error {
	if !r.Applied {
		return apperror.InvalidState("escrow was already settled (%s)", r.EscrowStatus)
	}
	return nil
}

// SettlementService applies settlement instructions to escrow.
type SettlementService struct {
	Deps
}

func NewSettlementService(deps Deps) *SettlementService {
	return &SettlementService{Deps: deps}
}

// adminSettlePaths lists, per current booking status and instruction, the
// statuses the booking walks through so it ends where its money went. A
// missing entry means the instruction does not fit the booking.
var adminSettlePaths = map[string]map[policy.InstructionKind][]string{
	models.BookingStatusPending: {
		policy.InstructionRefundFull:    {models.BookingStatusCancelled, models.BookingStatusRefunded},
		policy.InstructionRefundPartial: {models.BookingStatusCancelled},
	},
	models.BookingStatusConfirmed: {
		policy.InstructionRelease:       {models.BookingStatusCompleted},
		policy.InstructionRefundFull:    {models.BookingStatusCancelled, models.BookingStatusRefunded},
		policy.InstructionRefundPartial: {models.BookingStatusCancelled},
	},
	models.BookingStatusDisputed: {
		policy.InstructionRelease:    {models.BookingStatusCompleted},
		policy.InstructionRefundFull: {models.BookingStatusRefunded},
	},
	models.BookingStatusCancelled: {
		policy.InstructionRefundFull:    {models.BookingStatusRefunded},
		policy.InstructionRefundPartial: {},
	},
}

// Settle is the admin entry point. It settles held escrow and moves the
// booking to the status matching the instruction: release completes it,
// a full refund ends it refunded and a partial refund cancels it. An
// escrow that already left held is reported as not applied.
func (s *SettlementService) Settle(ctx context.Context, bookingID, actorID uuid.UUID, in policy.Instruction) (res *SettlementResult, err error) {
	ctx, span := startSpan(ctx, "SettlementService.Settle",
		attribute.String("booking.id", bookingID.String()),
		attribute.String("settlement.kind", string(in.Kind)))
	defer endSpan(span, &err)

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
		escrow, err := tx.Escrow().GetByBookingForUpdate(ctx, b.ID)
		if err != nil {
			return missing(err, "escrow for booking", b.ID)
		}
		if escrow.Status != models.EscrowStatusHeld {
			res = &SettlementResult{EscrowStatus: escrow.Status, BookingStatus: b.Status}
			return nil
		}

		path, ok := adminSettlePaths[b.Status][in.Kind]
		if !ok {
			return apperror.InvalidState("a %s booking cannot be settled with %s", b.Status, in.Kind)
		}
		fromStatus := b.Status
		cancelled := false
		for _, next := range path {
			switch next {
			case models.BookingStatusCancelled:
				cancelled = true
				b.CancelledBy = &actorID
				b.CancelledAt = &now
			case models.BookingStatusCompleted, models.BookingStatusRefunded:
				if fromStatus == models.BookingStatusDisputed {
					resolution := models.ResolutionPayGuide
					if next == models.BookingStatusRefunded {
						resolution = models.ResolutionRefundTraveler
					}
					b.Resolution = &resolution
					b.ResolvedBy = &actorID
					b.ResolvedAt = &now
				}
			}
			if err := transition(ctx, tx, &fx, b, next, &actorID, models.ActorAdmin); err != nil {
				return err
			}
		}

		r, err := settleInTx(ctx, tx, b, in, &actorID, models.ActorAdmin, now)
		if err != nil {
			return err
		}
		if err := requireApplied(r); err != nil {
			return err
		}
		if b.Status == models.BookingStatusCompleted {
			if err := recordCompletion(ctx, tx, b); err != nil {
				return err
			}
		}
		if cancelled && b.TourID != nil {
			if err := tx.Catalog().RestoreSlots(ctx, *b.TourID, b.Participants); err != nil {
				return fmt.Errorf("restore slots: %w", err)
			}
		}

		payload := bookingPayload(b)
		payload["escrow_status"] = r.EscrowStatus
		fx.notify(b.TravelerID, notify.KindEscrowSettled, payload)
		fx.notify(b.GuideID, notify.KindEscrowSettled, payload)

		r.BookingStatus = b.Status
		res = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &fx)
	s.Log.Info("settlement requested",
		zap.String("booking_id", bookingID.String()),
		zap.String("instruction", string(in.Kind)),
		zap.Bool("applied", res.Applied),
		zap.String("escrow_status", res.EscrowStatus),
		zap.String("booking_status", res.BookingStatus))
	return res, nil
}

// settleInTx distributes the booking's escrow exactly once. The escrow row
// is locked for the rest of tx, and the held check and the status move
// happen under that lock.
func settleInTx(ctx context.Context, tx ledger.Tx, b *models.Booking, in policy.Instruction, actorID *uuid.UUID, actorType string, now time.Time) (SettlementResult, error) {
	escrow, err := tx.Escrow().GetByBookingForUpdate(ctx, b.ID)
	if err != nil {
		return SettlementResult{}, missing(err, "escrow for booking", b.ID)
	}
	if escrow.Status != models.EscrowStatusHeld {
		return SettlementResult{EscrowStatus: escrow.Status}, nil
	}

	plan, err := policy.PlanSettlement(in, escrow.Amount, b.GuideEarnings)
	if err != nil {
		return SettlementResult{}, err
	}

	ok, err := tx.Escrow().MarkSettled(ctx, escrow.ID, plan.EscrowStatus, now)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("mark escrow settled: %w", err)
	}
	if !ok {
		return SettlementResult{}, apperror.InvalidState("escrow %s is no longer held", escrow.ID)
	}

	entries := make([]models.LedgerEntry, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		entry := models.LedgerEntry{
			EscrowID:  escrow.ID,
			BookingID: b.ID,
			Kind:      a.Kind,
			Amount:    a.Amount,
		}
		if a.Recipient != "" {
			entry.PartyID = ptr(b.PartyID(a.Recipient))
		}
		entries = append(entries, entry)
	}
	if err := tx.Escrow().AddEntries(ctx, entries); err != nil {
		return SettlementResult{}, fmt.Errorf("add ledger entries: %w", err)
	}

	if err := audit(ctx, tx, actorID, actorType, "escrow_"+plan.EscrowStatus, "escrow", escrow.ID, map[string]any{
		"booking_id":  b.ID.String(),
		"instruction": in,
		"amount":      escrow.Amount,
	}); err != nil {
		return SettlementResult{}, err
	}

	return SettlementResult{EscrowStatus: plan.EscrowStatus, Applied: true, Entries: entries}, nil
}
