package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type StatsRepo struct {
	db querier
}

func (r *StatsRepo) RecordCompletion(ctx context.Context, guideID uuid.UUID, amount int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profile_stats (user_id, lifetime_earnings, bookings_as_guide)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			lifetime_earnings = profile_stats.lifetime_earnings + EXCLUDED.lifetime_earnings,
			bookings_as_guide = profile_stats.bookings_as_guide + 1,
			updated_at = now()
	`, guideID, amount)
	return err
}

func (r *StatsRepo) RecordSpend(ctx context.Context, travelerID uuid.UUID, amount int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profile_stats (user_id, lifetime_spend, bookings_as_traveler)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			lifetime_spend = profile_stats.lifetime_spend + EXCLUDED.lifetime_spend,
			bookings_as_traveler = profile_stats.bookings_as_traveler + 1,
			updated_at = now()
	`, travelerID, amount)
	return err
}

// Get returns zeroed stats for users with no completed bookings yet.
func (r *StatsRepo) Get(ctx context.Context, userID uuid.UUID) (*models.ProfileStats, error) {
	s := models.ProfileStats{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT lifetime_earnings, lifetime_spend, bookings_as_guide, bookings_as_traveler, updated_at
		FROM profile_stats WHERE user_id = $1
	`, userID).Scan(&s.LifetimeEarnings, &s.LifetimeSpend, &s.BookingsAsGuide, &s.BookingsAsTraveler, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
