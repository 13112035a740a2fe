package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

// memStore is an in-memory ConcertStore, HistoryStore and Transactor.
// WithTx snapshots the state and restores it when fn fails; it does not
// serialize callers, so concurrency tests exercise ConcertLocks alone.
type memStore struct {
	mu       sync.Mutex
	concerts map[uint64]model.Concert
	history  []model.HistoryRecord
	users    map[uint64]model.User
	nextID   uint64
	nextHist uint64

	// failUpdate, when set, is returned by UpdateCounters while failures > 0.
	failUpdate error
	failures   int
	updates    int
}

func newMemStore() *memStore {
	return &memStore{
		concerts: make(map[uint64]model.Concert),
		users:    map[uint64]model.User{1: {ID: 1, Name: "guest"}},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	concerts := make(map[uint64]model.Concert, len(m.concerts))
	for k, v := range m.concerts {
		concerts[k] = v
	}
	history := append([]model.HistoryRecord(nil), m.history...)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.concerts, m.history = concerts, history
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) Create(_ context.Context, c *model.Concert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.ID, c.ReservedCount, c.CancelledCount = m.nextID, 0, 0
	c.CreatedAt, c.UpdatedAt = now, now
	m.concerts[c.ID] = *c
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Concert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.concerts[id]
	if !ok {
		return nil, repository.ErrConcertNotFound
	}
	return &c, nil
}

func (m *memStore) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Concert, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) List(context.Context) ([]model.Concert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Concert, 0, len(m.concerts))
	for _, c := range m.concerts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Stats(context.Context) (model.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s model.DashboardStats
	for _, c := range m.concerts {
		s.TotalSeats += int64(c.TotalSeats)
		s.TotalReserved += int64(c.ReservedCount)
		s.TotalCancelled += int64(c.CancelledCount)
	}
	return s, nil
}

func (m *memStore) UpdateCounters(_ context.Context, id uint64, reserved, cancelled int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failures > 0 {
		m.failures--
		return m.failUpdate
	}
	c, ok := m.concerts[id]
	if !ok {
		return repository.ErrConcertNotFound
	}
	// Widen the window between read and write so missing serialization
	// shows up as lost updates.
	m.mu.Unlock()
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	c.ReservedCount, c.CancelledCount = reserved, cancelled
	m.concerts[id] = c
	return nil
}

func (m *memStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.concerts[id]; !ok {
		return repository.ErrConcertNotFound
	}
	delete(m.concerts, id)
	return nil
}

func (m *memStore) Append(_ context.Context, h *model.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHist++
	h.ID = m.nextHist
	m.history = append(m.history, *h)
	return nil
}

func (m *memStore) DeleteByConcert(_ context.Context, concertID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0:0]
	var n int64
	for _, h := range m.history {
		if h.ConcertID == concertID {
			n++
			continue
		}
		kept = append(kept, h)
	}
	m.history = kept
	return n, nil
}

func (m *memStore) listEntries(concertID uint64, all bool) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0)
	for i := len(m.history) - 1; i >= 0; i-- {
		h := m.history[i]
		if !all && h.ConcertID != concertID {
			continue
		}
		out = append(out, model.HistoryEntry{HistoryRecord: h, Concert: m.concerts[h.ConcertID], User: m.users[h.UserID]})
	}
	return out
}

func (m *memStore) counters(id uint64) (reserved, cancelled int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.concerts[id]
	return c.ReservedCount, c.CancelledCount
}

func (m *memStore) historyLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// memHistory adapts memStore's history listing to the HistoryStore
// method names, which clash with ConcertStore.List.
type memHistory struct{ *memStore }

func (h memHistory) List(context.Context) ([]model.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listEntries(0, true), nil
}

func (h memHistory) ListByConcert(_ context.Context, concertID uint64) ([]model.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listEntries(concertID, false), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) snapshot() []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Event(nil), p.events...)
}
