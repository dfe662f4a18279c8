package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type EscrowRepo struct {
	db querier
}

const escrowColumns = `id, booking_id, amount, currency, status, created_at, processed_at, released_at, refunded_at`

func scanEscrow(row scanner) (*models.EscrowTransaction, error) {
	var e models.EscrowTransaction
	err := row.Scan(&e.ID, &e.BookingID, &e.Amount, &e.Currency, &e.Status,
		&e.CreatedAt, &e.ProcessedAt, &e.ReleasedAt, &e.RefundedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowTransaction) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO escrow_transactions (booking_id, amount, currency, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.BookingID, e.Amount, e.Currency, e.Status).Scan(&e.ID, &e.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicate
	}
	return err
}

func (r *EscrowRepo) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	return scanEscrow(r.db.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE booking_id = $1`, bookingID))
}

func (r *EscrowRepo) GetByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	return scanEscrow(r.db.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE booking_id = $1 FOR UPDATE`, bookingID))
}

// MarkSettled only matches a held row, so a second settle is a no-op.
func (r *EscrowRepo) MarkSettled(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE escrow_transactions SET
			status = $2::text,
			processed_at = $3,
			released_at = CASE WHEN $2::text = 'released' THEN $3 ELSE released_at END,
			refunded_at = CASE WHEN $2::text IN ('refunded', 'refunded_partial') THEN $3 ELSE refunded_at END
		WHERE id = $1 AND status = 'held'
	`, id, status, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EscrowRepo) AddEntries(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO escrow_entries (escrow_id, booking_id, kind, party_id, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, e.EscrowID, e.BookingID, e.Kind, e.PartyID, e.Amount)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for _, e := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert %s entry: %w", e.Kind, err)
		}
	}
	return nil
}

func (r *EscrowRepo) ListEntries(ctx context.Context, escrowID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, escrow_id, booking_id, kind, party_id, amount, created_at
		FROM escrow_entries WHERE escrow_id = $1
		ORDER BY created_at, kind
	`, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.EscrowID, &e.BookingID, &e.Kind, &e.PartyID, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
