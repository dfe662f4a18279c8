package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo is the identity directory. It reads outside the ledger
// transactions, straight from the pool.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, role string, displayName *string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (role, display_name)
		VALUES ($1, $2)
		RETURNING id, role, display_name, created_at, last_active_at
	`, role, displayName).Scan(&u.ID, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, role, display_name, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) RoleOf(ctx context.Context, userID uuid.UUID) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		return "", notFound(err)
	}
	return role, nil
}

func (r *UserRepo) IsParticipant(ctx context.Context, bookingID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT traveler_id = $2 OR guide_id = $2 FROM bookings WHERE id = $1
	`, bookingID, userID).Scan(&ok)
	if err != nil {
		return false, notFound(err)
	}
	return ok, nil
}

func (r *UserRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.ProfileStats, error) {
	stats := &StatsRepo{db: r.pool}
	return stats.Get(ctx, userID)
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// AddMessage records a direct message between two users. The dispute
// analyzer counts these per meeting day.
func (r *UserRepo) AddMessage(ctx context.Context, m *models.Message) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, recipient_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at
	`, m.SenderID, m.RecipientID, m.Body).Scan(&m.ID, &m.SentAt)
	if isForeignKeyViolation(err) {
		return ledger.ErrNotFound
	}
	return err
}
