package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/events"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/ledger/memstore"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	clock    *fakeClock
	store    *memstore.Store
	bus      *events.MemoryBus
	cfg      *config.Config
	deps     Deps
	bookings *BookingService
	requests *RequestService
	disputes *DisputeService
	settle   *SettlementService

	traveler uuid.UUID
	guide    uuid.UUID
	admin    uuid.UUID
}

func testConfig() *config.Config {
	return &config.Config{
		Currency:       "USD",
		CatalogFeeBPS:  1000,
		BespokeFeeBPS:  1500,
		RequestTTL:     72 * time.Hour,
		PaymentWindow:  24 * time.Hour,
		SweepBatchSize: 50,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := memstore.New()
	store.SetClock(clock.Now)
	bus := events.NewMemoryBus()

	deps := Deps{
		Store:     store,
		Identity:  store,
		Notifier:  notify.NewEventNotifier(bus),
		Publisher: bus,
		Log:       zap.NewNop(),
		Now:       clock.Now,
	}

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		clock:    clock,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		deps:     deps,
		bookings: NewBookingService(deps, cfg),
		requests: NewRequestService(deps, cfg),
		disputes: NewDisputeService(deps),
		settle:   NewSettlementService(deps),
		traveler: uuid.New(),
		guide:    uuid.New(),
		admin:    uuid.New(),
	}
	store.PutUser(f.traveler, models.RoleTraveler)
	store.PutUser(f.guide, models.RoleGuide)
	store.PutUser(f.admin, models.RoleAdmin)
	return f
}

// paidBooking negotiates a bespoke half-day booking at basePrice starting
// at startsAt and returns the confirmed booking.
func (f *fixture) paidBooking(basePrice int64, startsAt time.Time) *models.Booking {
	f.t.Helper()
	req, err := f.requests.CreateRequest(f.ctx, f.traveler, CreateRequestInput{
		GuideID:       f.guide,
		StartsAt:      startsAt,
		DurationClass: models.DurationHalfDay,
		BasePrice:     basePrice,
	})
	require.NoError(f.t, err)
	_, err = f.requests.RespondToRequest(f.ctx, req.ID, f.guide, true, "")
	require.NoError(f.t, err)
	b, err := f.requests.PayRequest(f.ctx, req.ID, f.traveler)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) escrow(bookingID uuid.UUID) *models.EscrowWithEntries {
	f.t.Helper()
	e, err := f.bookings.GetEscrow(f.ctx, bookingID, f.admin)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) booking(bookingID uuid.UUID) *models.Booking {
	f.t.Helper()
	b, err := f.bookings.GetBooking(f.ctx, bookingID, f.admin)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) stats(userID uuid.UUID) *models.ProfileStats {
	f.t.Helper()
	var out *models.ProfileStats
	require.NoError(f.t, f.store.WithinTx(f.ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Stats().Get(ctx, userID)
		return err
	}))
	return out
}

// tour lists a three-hour tour of the fixture's guide at $50 a seat.
func (f *fixture) tour(startsAt time.Time, slots int) models.Tour {
	t := models.Tour{
		ID:              uuid.New(),
		GuideID:         f.guide,
		Title:           "Harbour at dusk",
		Price:           5000,
		Currency:        "USD",
		MaxParticipants: slots,
		SlotsLeft:       slots,
		StartsAt:        startsAt,
		DurationMinutes: 180,
		IsActive:        true,
	}
	f.store.PutTour(t)
	return t
}

func (f *fixture) slotsLeft(tourID uuid.UUID) int {
	f.t.Helper()
	var left int
	require.NoError(f.t, f.store.WithinTx(f.ctx, func(ctx context.Context, tx ledger.Tx) error {
		tour, err := tx.Catalog().GetTour(ctx, tourID)
		if err != nil {
			return err
		}
		left = tour.SlotsLeft
		return nil
	}))
	return left
}

// storedRequest reads a request straight from the store, without the lazy
// expiry the service reads apply.
func (f *fixture) storedRequest(id uuid.UUID) *models.BookingRequest {
	f.t.Helper()
	var out *models.BookingRequest
	require.NoError(f.t, f.store.WithinTx(f.ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Requests().Get(ctx, id)
		return err
	}))
	return out
}

// notifications returns the notification kinds sent to userID, in order.
func (f *fixture) notifications(userID uuid.UUID) []string {
	var kinds []string
	for _, s := range f.bus.Sent() {
		n, ok := notify.FromEvent(s.Event)
		if ok && n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

func entryAmounts(entries []models.LedgerEntry) map[string]int64 {
	out := make(map[string]int64)
	for _, e := range entries {
		out[e.Kind] += e.Amount
	}
	return out
}
