package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at returns a UTC time days after the fixture's start date.
func (f *fixture) at(days, hour int) time.Time {
	y, m, d := f.clock.Now().Date()
	return time.Date(y, m, d+days, hour, 0, 0, 0, time.UTC)
}

func (f *fixture) request(startsAt time.Time) *models.BookingRequest {
	f.t.Helper()
	r, err := f.requests.CreateRequest(f.ctx, f.traveler, CreateRequestInput{
		GuideID:       f.guide,
		StartsAt:      startsAt,
		DurationClass: models.DurationHalfDay,
		BasePrice:     10000,
		Message:       "Can we start at the fountain?",
	})
	require.NoError(f.t, err)
	return r
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	start := f.at(4, 10)

	r := f.request(start)
	assert.Equal(t, models.RequestStatusPending, r.Status)
	assert.Equal(t, f.clock.Now().Add(72*time.Hour), r.ExpiresAt)
	assert.Equal(t, 240, r.DurationMinutes)
	assert.Equal(t, f.at(4, 0), r.MeetingDate)
	assert.Equal(t, "USD", r.Currency)
	require.NotNil(t, r.Message)
	assert.Contains(t, f.notifications(f.guide), notify.KindRequestCreated)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	start := f.at(4, 10)

	tests := []struct {
		name    string
		actor   uuid.UUID
		in      CreateRequestInput
		wantErr error
	}{
		{
			name:    "missing guide",
			actor:   f.traveler,
			in:      CreateRequestInput{StartsAt: start, DurationClass: models.DurationHalfDay, BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "self",
			actor:   f.guide,
			in:      CreateRequestInput{GuideID: f.guide, StartsAt: start, DurationClass: models.DurationHalfDay, BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "zero price",
			actor:   f.traveler,
			in:      CreateRequestInput{GuideID: f.guide, StartsAt: start, DurationClass: models.DurationHalfDay},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "hourly without hours",
			actor:   f.traveler,
			in:      CreateRequestInput{GuideID: f.guide, StartsAt: start, DurationClass: models.DurationHourly, BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "unknown duration class",
			actor:   f.traveler,
			in:      CreateRequestInput{GuideID: f.guide, StartsAt: start, DurationClass: "weekend", BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "in the past",
			actor:   f.traveler,
			in:      CreateRequestInput{GuideID: f.guide, StartsAt: f.clock.Now().Add(-time.Hour), DurationClass: models.DurationHalfDay, BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "not a guide",
			actor:   f.guide,
			in:      CreateRequestInput{GuideID: f.traveler, StartsAt: start, DurationClass: models.DurationHalfDay, BasePrice: 100},
			wantErr: apperror.ErrValidation,
		},
		{
			name:    "unknown guide",
			actor:   f.traveler,
			in:      CreateRequestInput{GuideID: uuid.New(), StartsAt: start, DurationClass: models.DurationHalfDay, BasePrice: 100},
			wantErr: apperror.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.requests.CreateRequest(f.ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDuplicatePendingRequest(t *testing.T) {
	f := newFixture(t)
	f.request(f.at(4, 9))

	_, err := f.requests.CreateRequest(f.ctx, f.traveler, CreateRequestInput{
		GuideID:       f.guide,
		StartsAt:      f.at(4, 15),
		DurationClass: models.DurationHourly,
		Hours:         2,
		BasePrice:     4000,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "same guide, same day")

	other := f.request(f.at(5, 9))
	assert.Equal(t, models.RequestStatusPending, other.Status)
}

func TestRejectedRequestAllowsNewOne(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 9))

	rejected, err := f.requests.RespondToRequest(f.ctx, r.ID, f.guide, false, "booked elsewhere")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	assert.Nil(t, rejected.PaymentDeadline)
	assert.Contains(t, f.notifications(f.traveler), notify.KindRequestRejected)

	_, err = f.requests.PayRequest(f.ctx, r.ID, f.traveler)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	f.request(f.at(4, 14))
}

func TestRequestConflicts(t *testing.T) {
	f := newFixture(t)
	f.paidBooking(10000, f.at(4, 10)) // 10:00-14:00

	f.store.PutTour(models.Tour{
		ID:              uuid.New(),
		GuideID:         f.guide,
		Title:           "Sunset walk",
		Price:           3000,
		MaxParticipants: 10,
		SlotsLeft:       10,
		StartsAt:        f.at(5, 18),
		DurationMinutes: 120,
		IsActive:        true,
	})

	tests := []struct {
		name    string
		start   time.Time
		wantErr error
	}{
		{name: "overlaps booking", start: f.at(4, 12), wantErr: apperror.ErrInvalidState},
		{name: "ends inside booking", start: f.at(4, 7), wantErr: apperror.ErrInvalidState},
		{name: "back to back", start: f.at(4, 14)},
		{name: "overlaps tour", start: f.at(5, 16), wantErr: apperror.ErrInvalidState},
		{name: "before tour", start: f.at(5, 14)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traveler := uuid.New()
			f.store.PutUser(traveler, models.RoleTraveler)
			_, err := f.requests.CreateRequest(f.ctx, traveler, CreateRequestInput{
				GuideID:       f.guide,
				StartsAt:      tt.start,
				DurationClass: models.DurationHalfDay,
				BasePrice:     5000,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPayRechecksConflicts(t *testing.T) {
	f := newFixture(t)
	second := uuid.New()
	f.store.PutUser(second, models.RoleTraveler)

	first := f.request(f.at(4, 10))
	other, err := f.requests.CreateRequest(f.ctx, second, CreateRequestInput{
		GuideID:       f.guide,
		StartsAt:      f.at(4, 11),
		DurationClass: models.DurationHalfDay,
		BasePrice:     9000,
	})
	require.NoError(t, err)

	_, err = f.requests.RespondToRequest(f.ctx, first.ID, f.guide, true, "")
	require.NoError(t, err)
	_, err = f.requests.RespondToRequest(f.ctx, other.ID, f.guide, true, "")
	require.NoError(t, err)

	b, err := f.requests.PayRequest(f.ctx, first.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *b.RequestID)

	_, err = f.requests.PayRequest(f.ctx, other.ID, second)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	still, err := f.requests.GetRequest(f.ctx, other.ID, second)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, still.Status)
	assert.Nil(t, still.BookingID)
}

func TestPayRequest(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 10))

	_, err := f.requests.RespondToRequest(f.ctx, r.ID, f.traveler, true, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	accepted, err := f.requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "see you there")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.PaymentDeadline)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), *accepted.PaymentDeadline)
	assert.Contains(t, f.notifications(f.traveler), notify.KindRequestAccepted)

	_, err = f.requests.RespondToRequest(f.ctx, r.ID, f.guide, false, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "already answered")

	_, err = f.requests.PayRequest(f.ctx, r.ID, f.guide)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	b, err := f.requests.PayRequest(f.ctx, r.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, 1500, b.FeeBPS)
	assert.Equal(t, int64(11500), b.TotalPrice)
	assert.Equal(t, models.EscrowStatusHeld, f.escrow(b.ID).Status)
	assert.Contains(t, f.notifications(f.guide), notify.KindRequestPaid)

	paid, err := f.requests.GetRequest(f.ctx, r.ID, f.guide)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPaid, paid.Status)
	assert.Equal(t, b.ID, *paid.BookingID)

	_, err = f.requests.PayRequest(f.ctx, r.ID, f.traveler)
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "paid twice")
}

func TestRequestExpiredOnFirstAccess(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTTL = -time.Minute
	f := newFixtureWithConfig(t, cfg)

	r := f.request(f.at(4, 10))
	assert.Equal(t, models.RequestStatusPending, r.Status)

	_, err := f.requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "")
	assert.ErrorIs(t, err, apperror.ErrExpired)

	got, err := f.requests.GetRequest(f.ctx, r.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusExpired, got.Status)
	assert.Contains(t, f.notifications(f.traveler), notify.KindRequestExpired)
	assert.Contains(t, f.notifications(f.guide), notify.KindRequestExpired)

	_, err = f.requests.RespondToRequest(f.ctx, r.ID, f.guide, false, "")
	assert.ErrorIs(t, err, apperror.ErrExpired, "stays expired")
}

func TestRequestExpiresOnRead(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 10))

	f.clock.Advance(71 * time.Hour)
	got, err := f.requests.GetRequest(f.ctx, r.ID, f.guide)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)

	f.clock.Advance(time.Hour)
	got, err = f.requests.GetRequest(f.ctx, r.ID, f.guide)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusExpired, got.Status, "expires exactly at the deadline")

	_, err = f.requests.GetRequest(f.ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	viaAdmin, err := f.requests.GetRequest(f.ctx, r.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusExpired, viaAdmin.Status)
}

func TestExpiryAppliesBeforeAuthorization(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 10))
	f.clock.Advance(73 * time.Hour)

	_, err := f.requests.RespondToRequest(f.ctx, r.ID, f.traveler, true, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	assert.Equal(t, models.RequestStatusExpired, f.storedRequest(r.ID).Status, "flip committed despite the refusal")
	assert.Contains(t, f.notifications(f.guide), notify.KindRequestExpired)

	_, err = f.requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "")
	assert.ErrorIs(t, err, apperror.ErrExpired)
}

// calendarRecorder wraps a store and records guide calendar locks and
// conflict reads in the order they happen.
type calendarRecorder struct {
	ledger.Store
	mu    sync.Mutex
	calls []string
}

func (s *calendarRecorder) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, recordingTx{Tx: tx, rec: s})
	})
}

func (s *calendarRecorder) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *calendarRecorder) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingTx struct {
	ledger.Tx
	rec *calendarRecorder
}

func (t recordingTx) LockGuideCalendar(ctx context.Context, guideID uuid.UUID) error {
	t.rec.record("lock " + guideID.String())
	return t.Tx.LockGuideCalendar(ctx, guideID)
}

func (t recordingTx) Bookings() ledger.BookingRepo {
	return recordingBookings{BookingRepo: t.Tx.Bookings(), rec: t.rec}
}

type recordingBookings struct {
	ledger.BookingRepo
	rec *calendarRecorder
}

func (b recordingBookings) ListActiveForGuide(ctx context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	b.rec.record("list " + guideID.String())
	return b.BookingRepo.ListActiveForGuide(ctx, guideID, from, to)
}

func TestConflictCheckHoldsGuideCalendarLock(t *testing.T) {
	f := newFixture(t)
	rec := &calendarRecorder{Store: f.store}
	deps := f.deps
	deps.Store = rec
	requests := NewRequestService(deps, f.cfg)

	r, err := requests.CreateRequest(f.ctx, f.traveler, CreateRequestInput{
		GuideID:       f.guide,
		StartsAt:      f.at(4, 10),
		DurationClass: models.DurationHalfDay,
		BasePrice:     10000,
	})
	require.NoError(t, err)
	_, err = requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "")
	require.NoError(t, err)
	_, err = requests.PayRequest(f.ctx, r.ID, f.traveler)
	require.NoError(t, err)

	lock, list := "lock "+f.guide.String(), "list "+f.guide.String()
	// one conflict check on create and one on pay, each under the lock
	assert.Equal(t, []string{lock, list, lock, list}, rec.recorded())
}

func TestPaymentWindowExpires(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 10))
	_, err := f.requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.requests.PayRequest(f.ctx, r.ID, f.traveler)
	assert.ErrorIs(t, err, apperror.ErrExpired)

	got, err := f.requests.GetRequest(f.ctx, r.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPaymentExpired, got.Status)
	assert.Nil(t, got.BookingID)

	list, err := f.bookings.ListBookings(f.ctx, f.traveler, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t)
	r := f.request(f.at(4, 10))

	_, err := f.requests.CancelRequest(f.ctx, r.ID, f.traveler, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidState, "pending requests are answered, not cancelled")

	_, err = f.requests.RespondToRequest(f.ctx, r.ID, f.guide, true, "")
	require.NoError(t, err)

	_, err = f.requests.CancelRequest(f.ctx, r.ID, uuid.New(), "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	cancelled, err := f.requests.CancelRequest(f.ctx, r.ID, f.traveler, "found another guide")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
	assert.Contains(t, f.notifications(f.guide), notify.KindRequestCancelled)

	_, err = f.requests.PayRequest(f.ctx, r.ID, f.traveler)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	a := f.request(f.at(4, 10))
	f.request(f.at(5, 10))
	c := f.request(f.at(6, 10))
	_, err := f.requests.RespondToRequest(f.ctx, c.ID, f.guide, true, "")
	require.NoError(t, err)

	n, err := f.requests.SweepExpired(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(73 * time.Hour)

	n, err = f.requests.SweepExpired(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.requests.SweepExpired(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.requests.SweepExpired(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.requests.GetRequest(f.ctx, a.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusExpired, got.Status)
	got, err = f.requests.GetRequest(f.ctx, c.ID, f.traveler)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPaymentExpired, got.Status)

	var expiredNotes int
	for _, kind := range f.notifications(f.traveler) {
		if kind == notify.KindRequestExpired {
			expiredNotes++
		}
	}
	assert.Equal(t, 3, expiredNotes)
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)
	f.request(f.at(4, 10))
	f.request(f.at(5, 10))

	mine, err := f.requests.ListRequests(f.ctx, f.traveler, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := f.requests.ListRequests(f.ctx, f.guide, 1, 0)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	none, err := f.requests.ListRequests(f.ctx, uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
