package repositories

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the Postgres ledger.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) Bookings() ledger.BookingRepo            { return &BookingRepo{db: t.q} }
func (t *pgTx) Escrow() ledger.EscrowRepo               { return &EscrowRepo{db: t.q} }
func (t *pgTx) Requests() ledger.RequestRepo            { return &RequestRepo{db: t.q} }
func (t *pgTx) Catalog() ledger.Catalog                 { return &TourRepo{db: t.q} }
func (t *pgTx) Stats() ledger.ProfileStats              { return &StatsRepo{db: t.q} }
func (t *pgTx) Conversations() ledger.ConversationStore { return &MessageRepo{db: t.q} }
func (t *pgTx) Audit() ledger.AuditRepo                 { return &AuditRepo{db: t.q} }

// LockGuideCalendar takes a transaction-scoped advisory lock keyed on the
// guide. Two ids sharing their first eight bytes share a lock.
func (t *pgTx) LockGuideCalendar(ctx context.Context, guideID uuid.UUID) error {
	key := int64(binary.BigEndian.Uint64(guideID[:8]))
	if _, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("lock guide calendar: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to ledger.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
