package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/models"
)

type MessageRepo struct {
	db querier
}

func (r *MessageRepo) MessagesBetween(ctx context.Context, a, b uuid.UUID, since, until time.Time) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, recipient_id, body, sent_at
		FROM messages
		WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		  AND sent_at >= $3 AND sent_at < $4
		ORDER BY sent_at
	`, a, b, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
