package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/models"
)

// TourRepo is the catalog of fixed-slot tours.
type TourRepo struct {
	db querier
}

const tourColumns = `id, guide_id, title, price, currency, max_participants, slots_left,
	starts_at, duration_minutes, is_active, created_at`

func scanTour(row scanner) (*models.Tour, error) {
	var t models.Tour
	err := row.Scan(&t.ID, &t.GuideID, &t.Title, &t.Price, &t.Currency, &t.MaxParticipants, &t.SlotsLeft,
		&t.StartsAt, &t.DurationMinutes, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TourRepo) GetTour(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	return scanTour(r.db.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE id = $1`, id))
}

func (r *TourRepo) DecrementSlots(ctx context.Context, tourID uuid.UUID, count int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tours SET slots_left = slots_left - $2
		WHERE id = $1 AND slots_left >= $2
	`, tourID, count)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TourRepo) RestoreSlots(ctx context.Context, tourID uuid.UUID, count int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tours SET slots_left = LEAST(slots_left + $2, max_participants)
		WHERE id = $1
	`, tourID, count)
	return err
}

func (r *TourRepo) ListGuideTours(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Tour, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+tourColumns+` FROM tours
		WHERE guide_id = $1 AND is_active
		  AND starts_at < $3
		  AND starts_at + make_interval(mins => duration_minutes) > $2
		ORDER BY starts_at
	`, guideID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tour
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
