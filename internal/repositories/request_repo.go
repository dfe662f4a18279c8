package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
)

type RequestRepo struct {
	db querier
}

const requestColumns = `id, traveler_id, guide_id, meeting_date, starts_at, duration_class, duration_minutes,
	base_price, currency, message, status, expires_at, payment_deadline, responded_at, response_note,
	booking_id, created_at, updated_at`

func scanRequest(row scanner) (*models.BookingRequest, error) {
	var r models.BookingRequest
	err := row.Scan(&r.ID, &r.TravelerID, &r.GuideID, &r.MeetingDate, &r.StartsAt, &r.DurationClass, &r.DurationMinutes,
		&r.BasePrice, &r.Currency, &r.Message, &r.Status, &r.ExpiresAt, &r.PaymentDeadline, &r.RespondedAt, &r.ResponseNote,
		&r.BookingID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// Create relies on the partial unique index over pending requests.
func (r *RequestRepo) Create(ctx context.Context, req *models.BookingRequest) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO booking_requests (traveler_id, guide_id, meeting_date, starts_at, duration_class,
			duration_minutes, base_price, currency, message, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, req.TravelerID, req.GuideID, req.MeetingDate, req.StartsAt, req.DurationClass,
		req.DurationMinutes, req.BasePrice, req.Currency, req.Message, req.Status, req.ExpiresAt,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicate
	}
	return err
}

func (r *RequestRepo) Get(ctx context.Context, id uuid.UUID) (*models.BookingRequest, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM booking_requests WHERE id = $1`, id))
}

func (r *RequestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BookingRequest, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM booking_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *RequestRepo) Update(ctx context.Context, req *models.BookingRequest) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE booking_requests SET
			status = $2, payment_deadline = $3, responded_at = $4, response_note = $5,
			booking_id = $6, updated_at = $7
		WHERE id = $1
	`, req.ID, req.Status, req.PaymentDeadline, req.RespondedAt, req.ResponseNote, req.BookingID, req.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *RequestRepo) HasPending(ctx context.Context, travelerID, guideID uuid.UUID, meetingDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM booking_requests
			WHERE traveler_id = $1 AND guide_id = $2 AND meeting_date = $3::date AND status = 'pending'
		)
	`, travelerID, guideID, meetingDate).Scan(&exists)
	return exists, err
}

func (r *RequestRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BookingRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+` FROM booking_requests
		WHERE traveler_id = $1 OR guide_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BookingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *RequestRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM booking_requests
		WHERE (status = 'pending' AND expires_at <= $1)
		   OR (status = 'accepted' AND payment_deadline <= $1)
		ORDER BY created_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
