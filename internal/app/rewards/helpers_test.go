package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/memstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
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

func newTestEngine(t *testing.T) (*Engine, *memstore.Store, *fakeClock) {
	t.Helper()
	store := memstore.New()
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	return NewEngine(store, cfg, nil), store, clock
}

// fullReport scores 100: photo, GPS, long description with a keyword and a
// real address.
func fullReport(id int64, userID string) domain.Report {
	lat, lng := 12.9716, 77.5946
	return domain.Report{
		ID:          id,
		UserID:      userID,
		Description: "Overflowing garbage bin near the park",
		Address:     "MG Road, Bengaluru",
		Lat:         &lat,
		Lng:         &lng,
		PhotoURL:    "/uploads/abc.jpg",
		Status:      domain.StatusPending,
	}
}

// bareReport has a photo and nothing else.
func bareReport(id int64, userID string) domain.Report {
	return domain.Report{ID: id, UserID: userID, PhotoURL: "/uploads/x.jpg", Status: domain.StatusPending}
}

func actionsOf(awards []Award) []domain.ActionKind {
	out := make([]domain.ActionKind, len(awards))
	for i, a := range awards {
		out[i] = a.Action
	}
	return out
}

// flakyStore fails ApplyLedgerUpdate while err is set and remembers the
// last update it was asked to apply.
type flakyStore struct {
	*memstore.Store
	mu   sync.Mutex
	err  error
	last domain.LedgerUpdate
}

func (s *flakyStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *flakyStore) ApplyLedgerUpdate(ctx context.Context, u domain.LedgerUpdate) (domain.LedgerUpdateResult, error) {
	s.mu.Lock()
	s.last = u
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return domain.LedgerUpdateResult{}, err
	}
	return s.Store.ApplyLedgerUpdate(ctx, u)
}
