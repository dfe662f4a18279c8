package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/events"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/notify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/guidemeet/backend/internal/services")

// Identity answers who a caller is. Implemented by the user directory.
type Identity interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (string, error)
	IsParticipant(ctx context.Context, bookingID, userID uuid.UUID) (bool, error)
}

// Deps are the collaborators every core service shares.
type Deps struct {
	Store     ledger.Store
	Identity  Identity
	Notifier  notify.Notifier
	Publisher events.Publisher
	Log       *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// effects collects what an operation announces once its transaction has
// committed.
type effects struct {
	outbox  notify.Outbox
	changes []events.Event
}

func (fx *effects) notify(userID uuid.UUID, kind string, payload map[string]any) {
	fx.outbox.Add(userID, kind, payload)
}

func (fx *effects) statusChanged(eventType, entityKey string, id uuid.UUID, from, to string) {
	fx.changes = append(fx.changes, events.Event{
		Type: eventType,
		Payload: map[string]any{
			entityKey:    id.String(),
			"old_status": from,
			"new_status": to,
		},
	})
}

// publish flushes notifications and status events. Failures never reach
// the caller.
func (d Deps) publish(ctx context.Context, fx *effects) {
	fx.outbox.Flush(ctx, d.Notifier, d.Log)
	for _, ev := range fx.changes {
		if err := d.Publisher.Publish(ctx, events.StreamBookings, ev); err != nil {
			d.Log.Warn("failed to publish status change", zap.String("type", ev.Type), zap.Error(err))
		}
	}
	fx.changes = nil
}

// requireAdmin fails with Forbidden unless actorID has the admin role.
func (d Deps) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	role, err := d.Identity.RoleOf(ctx, actorID)
	if errors.Is(err, ledger.ErrNotFound) {
		return apperror.Forbidden("unknown user")
	}
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}
	if role != models.RoleAdmin {
		return apperror.Forbidden("admin role required")
	}
	return nil
}

func (d Deps) isAdmin(ctx context.Context, actorID uuid.UUID) bool {
	role, err := d.Identity.RoleOf(ctx, actorID)
	return err == nil && role == models.RoleAdmin
}

func audit(ctx context.Context, tx ledger.Tx, actorID *uuid.UUID, actorType, action, entityType string, entityID uuid.UUID, meta map[string]any) error {
	if err := tx.Audit().Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  entityType,
		EntityID:    &entityID,
		Meta:        meta,
	}); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// missing turns ledger.ErrNotFound into a NotFound error naming what.
func missing(err error, what string, id uuid.UUID) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return apperror.Wrap(apperror.KindNotFound, err, fmt.Sprintf("%s %s not found", what, id))
	}
	return err
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records *errp on span and ends it. Use with a named error return.
func endSpan(span trace.Span, errp *error) {
	if err := *errp; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func ptr[T any](v T) *T { return &v }
