package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
)

type BookingRepo struct {
	db querier
}

const bookingColumns = `id, traveler_id, guide_id, tour_id, request_id, participants,
	base_price, platform_fee, guide_earnings, total_price, fee_bps, currency,
	starts_at, duration_class, duration_minutes, status,
	traveler_attendance, traveler_reported_at, guide_attendance, guide_reported_at,
	cancellation_reason, cancelled_by, cancelled_at,
	disputed_at, resolution, resolved_by, resolved_at, resolution_note,
	created_at, updated_at`

func scanBooking(row scanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.TravelerID, &b.GuideID, &b.TourID, &b.RequestID, &b.Participants,
		&b.BasePrice, &b.PlatformFee, &b.GuideEarnings, &b.TotalPrice, &b.FeeBPS, &b.Currency,
		&b.StartsAt, &b.DurationClass, &b.DurationMinutes, &b.Status,
		&b.TravelerAttendance, &b.TravelerReportedAt, &b.GuideAttendance, &b.GuideReportedAt,
		&b.CancellationReason, &b.CancelledBy, &b.CancelledAt,
		&b.DisputedAt, &b.Resolution, &b.ResolvedBy, &b.ResolvedAt, &b.ResolutionNote,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BookingRepo) Create(ctx context.Context, b *models.Booking) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO bookings (traveler_id, guide_id, tour_id, request_id, participants,
			base_price, platform_fee, guide_earnings, total_price, fee_bps, currency,
			starts_at, duration_class, duration_minutes, status,
			traveler_attendance, guide_attendance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`, b.TravelerID, b.GuideID, b.TourID, b.RequestID, b.Participants,
		b.BasePrice, b.PlatformFee, b.GuideEarnings, b.TotalPrice, b.FeeBPS, b.Currency,
		b.StartsAt, b.DurationClass, b.DurationMinutes, b.Status,
		b.TravelerAttendance, b.GuideAttendance,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

func (r *BookingRepo) Update(ctx context.Context, b *models.Booking) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET
			status = $2,
			traveler_attendance = $3, traveler_reported_at = $4,
			guide_attendance = $5, guide_reported_at = $6,
			cancellation_reason = $7, cancelled_by = $8, cancelled_at = $9,
			disputed_at = $10, resolution = $11, resolved_by = $12, resolved_at = $13, resolution_note = $14,
			updated_at = now()
		WHERE id = $1
	`, b.ID, b.Status,
		b.TravelerAttendance, b.TravelerReportedAt,
		b.GuideAttendance, b.GuideReportedAt,
		b.CancellationReason, b.CancelledBy, b.CancelledAt,
		b.DisputedAt, b.Resolution, b.ResolvedBy, b.ResolvedAt, b.ResolutionNote)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE (traveler_id = $1 OR guide_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *BookingRepo) ListActiveForGuide(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE guide_id = $1 AND status IN ('pending', 'confirmed')
		  AND starts_at < $3
		  AND starts_at + make_interval(mins => duration_minutes) > $2
		ORDER BY starts_at
	`, guideID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *BookingRepo) History(ctx context.Context, userID uuid.UUID, party models.Party, exclude uuid.UUID) (models.PartyHistory, error) {
	column, noShow := "traveler_id", models.BookingStatusNoShowTraveler
	if party == models.PartyGuide {
		column, noShow = "guide_id", models.BookingStatusNoShowGuide
	}

	var h models.PartyHistory
	err := r.db.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE disputed_at IS NOT NULL),
			count(*) FILTER (WHERE status IN ($3, 'no_show_both'))
		FROM bookings
		WHERE `+column+` = $1 AND id <> $2
	`, userID, exclude, noShow).Scan(&h.Completed, &h.Disputes, &h.NoShows)
	return h, err
}
