// Package quota provides quota.Ledger implementations backed by process
// memory and by Redis. The relational ledger lives with the other gorm
// repositories in the persistence package.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
)

type recordKey struct {
	userID string
	period quota.PeriodKey
}

// ledgerEntry is the state of one (user, period). Its mutex serializes every
// operation on that key, so different users never contend.
type ledgerEntry struct {
	mu      sync.Mutex
	record  quota.Record
	pending map[uuid.UUID]struct{}
}

// InMemoryLedger implements quota.Ledger in process memory.
// It is suitable for single-instance deployments and tests; usage is lost on
// restart.
type InMemoryLedger struct {
	mu      sync.Mutex
	entries map[recordKey]*ledgerEntry
	now     func() time.Time
}

// NewInMemoryLedger creates a new in-memory ledger
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		entries: make(map[recordKey]*ledgerEntry),
		now:     time.Now,
	}
}

func (l *InMemoryLedger) entry(userID string, period quota.PeriodKey, create bool) *ledgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := recordKey{userID: userID, period: period}
	e, ok := l.entries[key]
	if !ok && create {
		e = &ledgerEntry{pending: make(map[uuid.UUID]struct{})}
		l.entries[key] = e
	}
	return e
}

// Reserve takes one slot if the record allows it
func (l *InMemoryLedger) Reserve(ctx context.Context, req quota.ReserveRequest) (*quota.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := l.entry(req.UserID, req.PeriodKey, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now().UTC()
	if e.record.UserID == "" {
		e.record = quota.Record{UserID: req.UserID, PeriodKey: req.PeriodKey, Limit: req.Limit, UpdatedAt: now}
	} else {
		e.record.Limit = quota.RaiseLimit(e.record.Limit, req.Limit)
	}
	if !e.record.CanReserve() {
		return nil, &quota.ExceededError{
			UserID:    req.UserID,
			PeriodKey: req.PeriodKey,
			Used:      e.record.Used,
			Limit:     e.record.Limit,
		}
	}

	e.record.Used++
	e.record.UpdatedAt = now
	r := quota.NewReservation(req.UserID, req.PeriodKey, e.record.Used, e.record.Limit, now)
	e.pending[r.Token] = struct{}{}
	return r, nil
}

// Commit settles a pending reservation; settled or unknown tokens are ignored
func (l *InMemoryLedger) Commit(_ context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	e := l.entry(r.UserID, r.PeriodKey, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, r.Token)
	return nil
}

// Rollback returns the slot of a pending reservation
func (l *InMemoryLedger) Rollback(_ context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	e := l.entry(r.UserID, r.PeriodKey, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[r.Token]; !ok {
		return nil
	}
	delete(e.pending, r.Token)
	if e.record.Used > 0 {
		e.record.Used--
	}
	e.record.UpdatedAt = l.now().UTC()
	return nil
}

// Get returns a copy of the record
func (l *InMemoryLedger) Get(_ context.Context, userID string, period quota.PeriodKey) (*quota.Record, error) {
	e := l.entry(userID, period, false)
	if e == nil {
		return nil, shared.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record.UserID == "" {
		return nil, shared.ErrNotFound
	}
	rec := e.record
	return &rec, nil
}

var _ quota.Ledger = (*InMemoryLedger)(nil)
