package dto

import "time"

type RegisterRequest struct {
	Role        string  `json:"role"` // traveler / guide
	DisplayName *string `json:"display_name,omitempty"`
}

type CreateBookingRequest struct {
	TourID       string `json:"tour_id"`
	Participants int    `json:"participants"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type ReportAttendanceRequest struct {
	Outcome string `json:"outcome"` // confirmed / no_show
}

type CreateBookingRequestRequest struct {
	GuideID       string    `json:"guide_id"`
	StartsAt      time.Time `json:"starts_at"`
	DurationClass string    `json:"duration_class"` // half_day / full_day / hourly
	Hours         int       `json:"hours,omitempty"`
	BasePrice     int64     `json:"base_price"` // minor units
	Message       string    `json:"message,omitempty"`
}

type RespondRequest struct {
	Note string `json:"note,omitempty"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution"` // REFUND_TRAVELER / PAY_GUIDE
	Note       string `json:"note,omitempty"`
}

type SettleRequest struct {
	Kind         string `json:"kind"` // RELEASE / REFUND_FULL / REFUND_PARTIAL
	Refund       int64  `json:"refund,omitempty"`
	Compensation int64  `json:"compensation,omitempty"`
}

type SweepRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}
