package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	var id uuid.UUID
	err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		b := &models.Booking{Status: models.BookingStatusPending}
		require.NoError(t, tx.Bookings().Create(ctx, b))
		id = b.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Bookings().Get(ctx, id)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	guide := uuid.New()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Stats().RecordCompletion(ctx, guide, 8500)
	}))

	var stats *models.ProfileStats
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		stats, err = tx.Stats().Get(ctx, guide)
		return err
	}))
	assert.Equal(t, int64(8500), stats.LifetimeEarnings)
	assert.Equal(t, 1, stats.BookingsAsGuide)
}

func TestMarkSettledOnlyFromHeld(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		e := &models.EscrowTransaction{BookingID: uuid.New(), Amount: 11500, Status: models.EscrowStatusHeld}
		require.NoError(t, tx.Escrow().Create(ctx, e))

		ok, err := tx.Escrow().MarkSettled(ctx, e.ID, models.EscrowStatusReleased, at)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.Escrow().MarkSettled(ctx, e.ID, models.EscrowStatusRefunded, at)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := tx.Escrow().GetByBooking(ctx, e.BookingID)
		require.NoError(t, err)
		assert.Equal(t, models.EscrowStatusReleased, got.Status)
		assert.Equal(t, &at, got.ReleasedAt)
		assert.Nil(t, got.RefundedAt)

		assert.ErrorIs(t, tx.Escrow().Create(ctx, &models.EscrowTransaction{BookingID: e.BookingID}), ledger.ErrDuplicate)
		return nil
	}))
}

func TestHistoryExcludesCurrentBooking(t *testing.T) {
	ctx := context.Background()
	s := New()
	guide, traveler := uuid.New(), uuid.New()
	disputedAt := time.Now()

	current := models.Booking{ID: uuid.New(), GuideID: guide, TravelerID: traveler, Status: models.BookingStatusDisputed, DisputedAt: &disputedAt}
	s.PutBooking(current)
	s.PutBooking(models.Booking{ID: uuid.New(), GuideID: guide, TravelerID: traveler, Status: models.BookingStatusCompleted})
	s.PutBooking(models.Booking{ID: uuid.New(), GuideID: guide, TravelerID: uuid.New(), Status: models.BookingStatusNoShowGuide})
	s.PutBooking(models.Booking{ID: uuid.New(), GuideID: uuid.New(), TravelerID: traveler, Status: models.BookingStatusNoShowBoth})
	s.PutBooking(models.Booking{ID: uuid.New(), GuideID: guide, TravelerID: uuid.New(), Status: models.BookingStatusCompleted, DisputedAt: &disputedAt})

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		g, err := tx.Bookings().History(ctx, guide, models.PartyGuide, current.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PartyHistory{Completed: 2, Disputes: 1, NoShows: 1}, g)

		tr, err := tx.Bookings().History(ctx, traveler, models.PartyTraveler, current.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PartyHistory{Completed: 1, NoShows: 1}, tr)
		return nil
	}))
}

func TestDuplicatePendingRequest(t *testing.T) {
	ctx := context.Background()
	s := New()
	traveler, guide := uuid.New(), uuid.New()
	day := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		first := &models.BookingRequest{TravelerID: traveler, GuideID: guide, MeetingDate: day, Status: models.RequestStatusPending}
		require.NoError(t, tx.Requests().Create(ctx, first))

		pending, err := tx.Requests().HasPending(ctx, traveler, guide, day.Add(9*time.Hour))
		require.NoError(t, err)
		assert.True(t, pending)

		second := &models.BookingRequest{TravelerID: traveler, GuideID: guide, MeetingDate: day, Status: models.RequestStatusPending}
		return tx.Requests().Create(ctx, second)
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
}
