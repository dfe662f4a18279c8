// Package memstore is an in-memory ledger.Store. Transactions are fully
// serialized and roll back by restoring a snapshot taken at begin.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/ledger"
	"github.com/guidemeet/backend/internal/models"
)

type state struct {
	tours     map[uuid.UUID]models.Tour
	bookings  map[uuid.UUID]models.Booking
	escrows   map[uuid.UUID]models.EscrowTransaction // by booking id
	entries   []models.LedgerEntry
	requests  map[uuid.UUID]models.BookingRequest
	stats     map[uuid.UUID]models.ProfileStats
	messages  []models.Message
	audit     []models.AuditLog
	statsFail error
}

func newState() *state {
	return &state{
		tours:    make(map[uuid.UUID]models.Tour),
		bookings: make(map[uuid.UUID]models.Booking),
		escrows:  make(map[uuid.UUID]models.EscrowTransaction),
		requests: make(map[uuid.UUID]models.BookingRequest),
		stats:    make(map[uuid.UUID]models.ProfileStats),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.tours {
		c.tours[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.escrows {
		c.escrows[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	c.entries = append([]models.LedgerEntry(nil), s.entries...)
	c.messages = append([]models.Message(nil), s.messages...)
	c.audit = append([]models.AuditLog(nil), s.audit...)
	c.statsFail = s.statsFail
	return c
}

// Store implements ledger.Store and the identity lookups services need.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// users is the identity directory; it has its own lock so role lookups
	// never wait on a running transaction.
	usersMu sync.RWMutex
	users   map[uuid.UUID]string
}

func New() *Store {
	return &Store{st: newState(), now: time.Now, users: make(map[uuid.UUID]string)}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &txn{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// SetClock replaces the clock used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutUser registers a user with a role.
func (s *Store) PutUser(id uuid.UUID, role string) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.users[id] = role
}

func (s *Store) PutTour(t models.Tour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tours[t.ID] = t
}

func (s *Store) PutMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.st.messages = append(s.st.messages, m)
}

// PutBooking stores b as is, bypassing every check. Test fixtures use it to
// build history.
func (s *Store) PutBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.bookings[b.ID] = b
}

// FailStats makes every profile stats write fail with err until called
// again with nil.
func (s *Store) FailStats(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.statsFail = err
}

func (s *Store) RoleOf(_ context.Context, userID uuid.UUID) (string, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	role, ok := s.users[userID]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return role, nil
}

// IsParticipant must not be called from inside WithinTx.
func (s *Store) IsParticipant(_ context.Context, bookingID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.bookings[bookingID]
	if !ok {
		return false, ledger.ErrNotFound
	}
	return b.TravelerID == userID || b.GuideID == userID, nil
}

type txn struct {
	st  *state
	now func() time.Time
}

func (t *txn) Bookings() ledger.BookingRepo            { return bookingRepo{t} }
func (t *txn) Escrow() ledger.EscrowRepo               { return escrowRepo{t} }
func (t *txn) Requests() ledger.RequestRepo            { return requestRepo{t} }
func (t *txn) Catalog() ledger.Catalog                 { return catalog{t} }
func (t *txn) Stats() ledger.ProfileStats              { return statsRepo{t} }
func (t *txn) Conversations() ledger.ConversationStore { return conversations{t} }
func (t *txn) Audit() ledger.AuditRepo                 { return auditRepo{t} }

// LockGuideCalendar is a no-op: WithinTx already runs one transaction at a
// time.
func (t *txn) LockGuideCalendar(context.Context, uuid.UUID) error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// bookings

type bookingRepo struct{ t *txn }

func (r bookingRepo) Create(_ context.Context, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := r.t.now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.t.st.bookings[b.ID] = *b
	return nil
}

func (r bookingRepo) Get(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := r.t.st.bookings[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &b, nil
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.Get(ctx, id)
}

func (r bookingRepo) Update(_ context.Context, b *models.Booking) error {
	if _, ok := r.t.st.bookings[b.ID]; !ok {
		return ledger.ErrNotFound
	}
	b.UpdatedAt = r.t.now()
	r.t.st.bookings[b.ID] = *b
	return nil
}

func (r bookingRepo) ListByUser(_ context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.t.st.bookings {
		if b.TravelerID != userID && b.GuideID != userID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, limit, offset), nil
}

func (r bookingRepo) ListActiveForGuide(_ context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.t.st.bookings {
		if b.GuideID != guideID || !b.IsActive() {
			continue
		}
		if b.StartsAt.Before(to) && b.EndsAt().After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r bookingRepo) History(_ context.Context, userID uuid.UUID, party models.Party, exclude uuid.UUID) (models.PartyHistory, error) {
	var h models.PartyHistory
	for _, b := range r.t.st.bookings {
		if b.ID == exclude || b.PartyID(party) != userID {
			continue
		}
		if b.Status == models.BookingStatusCompleted {
			h.Completed++
		}
		if b.DisputedAt != nil {
			h.Disputes++
		}
		if isNoShowOf(b.Status, party) {
			h.NoShows++
		}
	}
	return h, nil
}

func isNoShowOf(status string, party models.Party) bool {
	switch status {
	case models.BookingStatusNoShowBoth:
		return true
	case models.BookingStatusNoShowGuide:
		return party == models.PartyGuide
	case models.BookingStatusNoShowTraveler:
		return party == models.PartyTraveler
	}
	return false
}

// escrow

type escrowRepo struct{ t *txn }

func (r escrowRepo) Create(_ context.Context, e *models.EscrowTransaction) error {
	if _, exists := r.t.st.escrows[e.BookingID]; exists {
		return ledger.ErrDuplicate
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.t.now()
	r.t.st.escrows[e.BookingID] = *e
	return nil
}

func (r escrowRepo) GetByBooking(_ context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	e, ok := r.t.st.escrows[bookingID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &e, nil
}

func (r escrowRepo) GetByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	return r.GetByBooking(ctx, bookingID)
}

func (r escrowRepo) MarkSettled(_ context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	for bookingID, e := range r.t.st.escrows {
		if e.ID != id {
			continue
		}
		if e.Status != models.EscrowStatusHeld {
			return false, nil
		}
		e.Status = status
		e.ProcessedAt = &at
		switch status {
		case models.EscrowStatusReleased:
			e.ReleasedAt = &at
		case models.EscrowStatusRefunded, models.EscrowStatusRefundedPartial:
			e.RefundedAt = &at
		}
		r.t.st.escrows[bookingID] = e
		return true, nil
	}
	return false, ledger.ErrNotFound
}

func (r escrowRepo) AddEntries(_ context.Context, entries []models.LedgerEntry) error {
	now := r.t.now()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = now
		r.t.st.entries = append(r.t.st.entries, e)
	}
	return nil
}

func (r escrowRepo) ListEntries(_ context.Context, escrowID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range r.t.st.entries {
		if e.EscrowID == escrowID {
			out = append(out, e)
		}
	}
	return out, nil
}

// requests

type requestRepo struct{ t *txn }

func (r requestRepo) Create(_ context.Context, req *models.BookingRequest) error {
	for _, other := range r.t.st.requests {
		if other.Status == models.RequestStatusPending &&
			other.TravelerID == req.TravelerID && other.GuideID == req.GuideID &&
			sameDay(other.MeetingDate, req.MeetingDate) {
			return ledger.ErrDuplicate
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := r.t.now()
	req.CreatedAt, req.UpdatedAt = now, now
	r.t.st.requests[req.ID] = *req
	return nil
}

func (r requestRepo) Get(_ context.Context, id uuid.UUID) (*models.BookingRequest, error) {
	req, ok := r.t.st.requests[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BookingRequest, error) {
	return r.Get(ctx, id)
}

func (r requestRepo) Update(_ context.Context, req *models.BookingRequest) error {
	if _, ok := r.t.st.requests[req.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.t.st.requests[req.ID] = *req
	return nil
}

func (r requestRepo) HasPending(_ context.Context, travelerID, guideID uuid.UUID, meetingDate time.Time) (bool, error) {
	for _, req := range r.t.st.requests {
		if req.Status == models.RequestStatusPending &&
			req.TravelerID == travelerID && req.GuideID == guideID &&
			sameDay(req.MeetingDate, meetingDate) {
			return true, nil
		}
	}
	return false, nil
}

func (r requestRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.BookingRequest, error) {
	var out []models.BookingRequest
	for _, req := range r.t.st.requests {
		if req.IsParticipant(userID) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r requestRepo) ListDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var due []models.BookingRequest
	for _, req := range r.t.st.requests {
		if req.IsDue(now) {
			due = append(due, req)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	due = page(due, limit, 0)

	ids := make([]uuid.UUID, len(due))
	for i, req := range due {
		ids[i] = req.ID
	}
	return ids, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// catalog

type catalog struct{ t *txn }

func (c catalog) GetTour(_ context.Context, id uuid.UUID) (*models.Tour, error) {
	tour, ok := c.t.st.tours[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tour, nil
}

func (c catalog) DecrementSlots(_ context.Context, tourID uuid.UUID, count int) (bool, error) {
	tour, ok := c.t.st.tours[tourID]
	if !ok {
		return false, ledger.ErrNotFound
	}
	if tour.SlotsLeft < count {
		return false, nil
	}
	tour.SlotsLeft -= count
	c.t.st.tours[tourID] = tour
	return true, nil
}

func (c catalog) RestoreSlots(_ context.Context, tourID uuid.UUID, count int) error {
	tour, ok := c.t.st.tours[tourID]
	if !ok {
		return ledger.ErrNotFound
	}
	tour.SlotsLeft = min(tour.SlotsLeft+count, tour.MaxParticipants)
	c.t.st.tours[tourID] = tour
	return nil
}

func (c catalog) ListGuideTours(_ context.Context, guideID uuid.UUID, from, to time.Time) ([]models.Tour, error) {
	var out []models.Tour
	for _, tour := range c.t.st.tours {
		if tour.GuideID == guideID && tour.IsActive && tour.StartsAt.Before(to) && tour.EndsAt().After(from) {
			out = append(out, tour)
		}
	}
	return out, nil
}

// profile stats

type statsRepo struct{ t *txn }

func (r statsRepo) bump(userID uuid.UUID, fn func(*models.ProfileStats)) error {
	if r.t.st.statsFail != nil {
		return r.t.st.statsFail
	}
	s := r.t.st.stats[userID]
	s.UserID = userID
	fn(&s)
	s.UpdatedAt = r.t.now()
	r.t.st.stats[userID] = s
	return nil
}

func (r statsRepo) RecordCompletion(_ context.Context, guideID uuid.UUID, amount int64) error {
	return r.bump(guideID, func(s *models.ProfileStats) {
		s.LifetimeEarnings += amount
		s.BookingsAsGuide++
	})
}

func (r statsRepo) RecordSpend(_ context.Context, travelerID uuid.UUID, amount int64) error {
	return r.bump(travelerID, func(s *models.ProfileStats) {
		s.LifetimeSpend += amount
		s.BookingsAsTraveler++
	})
}

func (r statsRepo) Get(_ context.Context, userID uuid.UUID) (*models.ProfileStats, error) {
	s, ok := r.t.st.stats[userID]
	if !ok {
		return &models.ProfileStats{UserID: userID}, nil
	}
	return &s, nil
}

// conversations

type conversations struct{ t *txn }

func (c conversations) MessagesBetween(_ context.Context, a, b uuid.UUID, since, until time.Time) ([]models.Message, error) {
	var out []models.Message
	for _, m := range c.t.st.messages {
		between := (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
		if between && !m.SentAt.Before(since) && m.SentAt.Before(until) {
			out = append(out, m)
		}
	}
	return out, nil
}

// audit

type auditRepo struct{ t *txn }

func (r auditRepo) Log(_ context.Context, entry models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.t.now()
	r.t.st.audit = append(r.t.st.audit, entry)
	return nil
}

func (r auditRepo) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for i := len(r.t.st.audit) - 1; i >= 0; i-- {
		e := r.t.st.audit[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}
