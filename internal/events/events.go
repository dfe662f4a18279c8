package events

import "context"

// Streams
const (
	StreamNotifications = "events:notifications"
	StreamBookings      = "events:bookings"
)

// Event types
const (
	EventNotification         = "notification"
	EventBookingStatusChanged = "booking_status_changed"
	EventRequestStatusChanged = "request_status_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

// Subscriber delivers events of one stream to handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(context.Context, Event)) error
}
