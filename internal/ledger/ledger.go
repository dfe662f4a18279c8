// Package ledger defines the storage surface of the booking core. Every
// state-deciding read and its writes happen inside one WithinTx call; the
// *ForUpdate getters lock the row for the rest of the transaction.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("ledger: record not found")
	ErrDuplicate = errors.New("ledger: duplicate record")
)

type Store interface {
	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Bookings() BookingRepo
	Escrow() EscrowRepo
	Requests() RequestRepo
	Catalog() Catalog
	Stats() ProfileStats
	Conversations() ConversationStore
	Audit() AuditRepo
	// LockGuideCalendar serializes, until the transaction ends, every
	// transaction that checks or books the guide's calendar.
	LockGuideCalendar(ctx context.Context, guideID uuid.UUID) error
}

type BookingRepo interface {
	Create(ctx context.Context, b *models.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// Update persists the mutable fields: status, attendance, cancellation
	// and resolution metadata.
	Update(ctx context.Context, b *models.Booking) error
	ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Booking, error)
	// ListActiveForGuide returns pending or confirmed bookings of the guide
	// that intersect [from, to).
	ListActiveForGuide(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Booking, error)
	// History counts the user's past bookings on one side, leaving out
	// the booking given in exclude.
	History(ctx context.Context, userID uuid.UUID, party models.Party, exclude uuid.UUID) (models.PartyHistory, error)
}

type EscrowRepo interface {
	Create(ctx context.Context, e *models.EscrowTransaction) error
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error)
	GetByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error)
	// MarkSettled moves a held escrow to status. It reports false when the
	// escrow was no longer held.
	MarkSettled(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error)
	AddEntries(ctx context.Context, entries []models.LedgerEntry) error
	ListEntries(ctx context.Context, escrowID uuid.UUID) ([]models.LedgerEntry, error)
}

type RequestRepo interface {
	Create(ctx context.Context, r *models.BookingRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.BookingRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BookingRequest, error)
	Update(ctx context.Context, r *models.BookingRequest) error
	HasPending(ctx context.Context, travelerID, guideID uuid.UUID, meetingDate time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BookingRequest, error)
	// ListDue returns ids of pending or accepted requests whose timer ran
	// out at now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Catalog serves fixed-slot tours.
type Catalog interface {
	GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error)
	// DecrementSlots reports false when fewer than count slots are left.
	DecrementSlots(ctx context.Context, tourID uuid.UUID, count int) (bool, error)
	RestoreSlots(ctx context.Context, tourID uuid.UUID, count int) error
	ListGuideTours(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Tour, error)
}

type ProfileStats interface {
	// RecordCompletion credits a guide with one completed booking and its earnings.
	RecordCompletion(ctx context.Context, guideID uuid.UUID, amount int64) error
	// RecordSpend credits a traveler with one completed booking and its price.
	RecordSpend(ctx context.Context, travelerID uuid.UUID, amount int64) error
	Get(ctx context.Context, userID uuid.UUID) (*models.ProfileStats, error)
}

type ConversationStore interface {
	// MessagesBetween returns messages either way between a and b sent in
	// [since, until).
	MessagesBetween(ctx context.Context, a, b uuid.UUID, since, until time.Time) ([]models.Message, error)
}

type AuditRepo interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
