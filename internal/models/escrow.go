package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusHeld            = "held"
	EscrowStatusReleased        = "released"
	EscrowStatusRefunded        = "refunded"
	EscrowStatusRefundedPartial = "refunded_partial"
)

// Ledger entry kinds
const (
	EntryPayout       = "payout"
	EntryPlatformFee  = "platform_fee"
	EntryRefund       = "refund"
	EntryCompensation = "compensation"
)

// EscrowTransaction holds the traveler's funds for one booking until a
// settlement moves them out. Only a held transaction can be settled.
type EscrowTransaction struct {
	ID          uuid.UUID  `json:"id"`
	BookingID   uuid.UUID  `json:"booking_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

type LedgerEntry struct {
	ID        uuid.UUID  `json:"id"`
	EscrowID  uuid.UUID  `json:"escrow_id"`
	BookingID uuid.UUID  `json:"booking_id"`
	Kind      string     `json:"kind"`
	PartyID   *uuid.UUID `json:"party_id,omitempty"` // nil for platform entries
	Amount    int64      `json:"amount"`
	CreatedAt time.Time  `json:"created_at"`
}

// EscrowWithEntries is the read model returned to participants.
type EscrowWithEntries struct {
	EscrowTransaction
	Entries []LedgerEntry `json:"entries"`
}
