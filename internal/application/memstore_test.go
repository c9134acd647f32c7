package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/transaction"
)

// memStore は行ロックと保持者の一意制約を再現するインメモリの座席ストア
// GetForUpdate は SELECT ... FOR UPDATE、ScanExpiredHeld は SKIP LOCKED 相当
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*seat.Seat
	locks   map[string]chan struct{}
	holders map[string]string // holder -> seat ID（未コミット分も含む）

	failUpdate error
	updates    int
}

func newMemStore(seats ...*seat.Seat) *memStore {
	s := &memStore{
		rows:    make(map[string]*seat.Seat),
		locks:   make(map[string]chan struct{}),
		holders: make(map[string]string),
	}
	for _, se := range seats {
		s.rows[se.ID] = se.Clone()
		s.locks[se.ID] = make(chan struct{}, 1)
		if se.IsActive() {
			s.holders[*se.Holder] = se.ID
		}
	}
	return s
}

func (s *memStore) get(id string) *seat.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Clone()
}

func (s *memStore) activeSeatsOf(holder string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.IsActive() && r.IsHeldBy(holder) {
			n++
		}
	}
	return n
}

type memTx struct {
	store  *memStore
	locked map[string]bool
	staged map[string]*seat.Seat
	undo   []func()
	done   bool
}

type memTxManager struct {
	store  *memStore
	begins int
	mu     sync.Mutex
}

func (m *memTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	m.mu.Lock()
	m.begins++
	m.mu.Unlock()
	return &memTx{store: m.store, locked: make(map[string]bool), staged: make(map[string]*seat.Seat)}, nil
}

func (m *memTxManager) beginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begins
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	for id, st := range t.staged {
		row := t.store.rows[id]
		// flagged は Update の対象外
		flagged := row.Flagged
		t.store.rows[id] = st.Clone()
		t.store.rows[id].Flagged = flagged
	}
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) finish() {
	for id := range t.locked {
		<-t.store.locks[id]
	}
	t.locked = nil
	t.done = true
}

func (t *memTx) view(id string) *seat.Seat {
	if st, ok := t.staged[id]; ok {
		return st
	}
	return t.store.rows[id]
}

func (s *memStore) Provision(ctx context.Context, seats []*seat.Seat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, se := range seats {
		if _, ok := s.rows[se.ID]; ok {
			continue
		}
		s.rows[se.ID] = se.Clone()
		s.locks[se.ID] = make(chan struct{}, 1)
		n++
	}
	return n, nil
}

func (s *memStore) List(ctx context.Context, filter seat.ListFilter) ([]*seat.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*seat.Seat
	for _, r := range s.rows {
		if filter.Floor != nil && r.Floor != *filter.Floor {
			continue
		}
		if filter.FreeOnly && !r.IsFree() {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Floor != out[j].Floor {
			return out[i].Floor < out[j].Floor
		}
		return out[i].SeatNumber < out[j].SeatNumber
	})
	return out, nil
}

func (s *memStore) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*seat.Seat, error) {
	mt := tx.(*memTx)
	s.mu.Lock()
	lock, ok := s.locks[id]
	s.mu.Unlock()
	if !ok {
		return nil, seat.ErrSeatNotFound
	}
	if !mt.locked[id] {
		select {
		case lock <- struct{}{}:
			mt.locked[id] = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return mt.view(id).Clone(), nil
}

func (s *memStore) FindActiveByHolder(ctx context.Context, tx transaction.Tx, holder string) (*seat.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mt *memTx
	if tx != nil {
		mt = tx.(*memTx)
	}
	for id, r := range s.rows {
		if mt != nil {
			r = mt.view(id)
		}
		if r.IsActive() && r.IsHeldBy(holder) {
			return r.Clone(), nil
		}
	}
	return nil, seat.ErrSeatNotFound
}

func (s *memStore) Update(ctx context.Context, tx transaction.Tx, se *seat.Seat) error {
	mt := tx.(*memTx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdate != nil {
		return s.failUpdate
	}
	if err := se.Validate(); err != nil {
		return err
	}

	prev := mt.view(se.ID)
	if se.IsActive() {
		if owner, ok := s.holders[*se.Holder]; ok && owner != se.ID {
			return seat.ErrSeatConflict
		}
	}
	if prev.IsActive() {
		h := *prev.Holder
		if s.holders[h] == se.ID {
			delete(s.holders, h)
			mt.undo = append(mt.undo, func() { s.holders[h] = se.ID })
		}
	}
	if se.IsActive() {
		h := *se.Holder
		s.holders[h] = se.ID
		mt.undo = append(mt.undo, func() { delete(s.holders, h) })
	}
	mt.staged[se.ID] = se.Clone()
	s.updates++
	return nil
}

func (s *memStore) ScanExpiredHeld(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*seat.Seat, error) {
	mt := tx.(*memTx)
	s.mu.Lock()
	var candidates []string
	for id, r := range s.rows {
		if r.IsExpired(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(candidates)

	var out []*seat.Seat
	for _, id := range candidates {
		if len(out) >= limit {
			break
		}
		select {
		case s.locks[id] <- struct{}{}:
		default:
			continue // SKIP LOCKED
		}
		s.mu.Lock()
		r := s.rows[id]
		if !r.IsExpired(now) {
			s.mu.Unlock()
			<-s.locks[id]
			continue
		}
		mt.locked[id] = true
		out = append(out, r.Clone())
		s.mu.Unlock()
	}
	return out, nil
}

func (s *memStore) Flag(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return seat.ErrSeatNotFound
	}
	r.Flag(now)
	return nil
}

var _ seat.Repository = (*memStore)(nil)

// fakeClock はテスト用の時計
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

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
