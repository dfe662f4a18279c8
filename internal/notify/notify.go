// Package notify carries notification intents out of the booking core.
// Intents are collected while a transaction runs and only dispatched once
// it has committed; a failed dispatch is logged and dropped.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/events"
	"go.uber.org/zap"
)

// Notification kinds
const (
	KindRequestCreated     = "request_created"
	KindRequestAccepted    = "request_accepted"
	KindRequestRejected    = "request_rejected"
	KindRequestExpired     = "request_expired"
	KindRequestCancelled   = "request_cancelled"
	KindRequestPaid        = "request_paid"
	KindBookingCreated     = "booking_created"
	KindBookingConfirmed   = "booking_confirmed"
	KindBookingCancelled   = "booking_cancelled"
	KindAttendanceReported = "attendance_reported"
	KindBookingCompleted   = "booking_completed"
	KindBookingDisputed    = "booking_disputed"
	KindBookingNoShow      = "booking_no_show"
	KindDisputeResolved    = "dispute_resolved"
	KindEscrowSettled      = "escrow_settled"
)

type Notifier interface {
	Enqueue(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) error
}

type Intent struct {
	UserID  uuid.UUID
	Kind    string
	Payload map[string]any
}

// Outbox buffers intents for one operation. The zero value is ready to use.
type Outbox struct {
	intents []Intent
}

func (o *Outbox) Add(userID uuid.UUID, kind string, payload map[string]any) {
	o.intents = append(o.intents, Intent{UserID: userID, Kind: kind, Payload: payload})
}

func (o *Outbox) Len() int { return len(o.intents) }

// Flush hands every buffered intent to n and empties the outbox.
func (o *Outbox) Flush(ctx context.Context, n Notifier, log *zap.Logger) {
	intents := o.intents
	o.intents = nil
	for _, in := range intents {
		if err := n.Enqueue(ctx, in.UserID, in.Kind, in.Payload); err != nil {
			log.Warn("notification dispatch failed",
				zap.String("user_id", in.UserID.String()),
				zap.String("kind", in.Kind),
				zap.Error(err))
		}
	}
}

// EventNotifier publishes intents to the notifications stream.
type EventNotifier struct {
	pub events.Publisher
}

func NewEventNotifier(pub events.Publisher) *EventNotifier {
	return &EventNotifier{pub: pub}
}

func (n *EventNotifier) Enqueue(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) error {
	return n.pub.Publish(ctx, events.StreamNotifications, events.Event{
		Type: events.EventNotification,
		Payload: map[string]any{
			"user_id": userID.String(),
			"kind":    kind,
			"data":    payload,
		},
	})
}

// Notification is the decoded form of a notification event.
type Notification struct {
	UserID uuid.UUID      `json:"user_id"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
}

// FromEvent decodes a notification event; ok is false for anything else.
func FromEvent(e events.Event) (Notification, bool) {
	if e.Type != events.EventNotification {
		return Notification{}, false
	}
	raw, _ := e.Payload["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return Notification{}, false
	}
	kind, _ := e.Payload["kind"].(string)
	data, _ := e.Payload["data"].(map[string]any)
	return Notification{UserID: userID, Kind: kind, Data: data}, true
}
