package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/transaction"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockSeatRepository implements seat.Repository
type MockSeatRepository struct {
	mock.Mock
}

func (m *MockSeatRepository) Provision(ctx context.Context, seats []*seat.Seat) (int, error) {
	args := m.Called(ctx, seats)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatRepository) List(ctx context.Context, filter seat.ListFilter) ([]*seat.Seat, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*seat.Seat, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seat.Seat), args.Error(1)
}

func (m *MockSeatRepository) FindActiveByHolder(ctx context.Context, tx transaction.Tx, holder string) (*seat.Seat, error) {
	args := m.Called(ctx, tx, holder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seat.Seat), args.Error(1)
}

func (m *MockSeatRepository) Update(ctx context.Context, tx transaction.Tx, s *seat.Seat) error {
	args := m.Called(ctx, tx, s)
	return args.Error(0)
}

func (m *MockSeatRepository) ScanExpiredHeld(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*seat.Seat, error) {
	args := m.Called(ctx, tx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockSeatRepository) Flag(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func newMockEngine() (*ReservationEngine, *MockTxManager, *MockTx, *MockSeatRepository) {
	tm := new(MockTxManager)
	tx := new(MockTx)
	repo := new(MockSeatRepository)
	engine := NewReservationEngine(tm, repo, nil, 5*time.Minute, WithClock(func() time.Time { return t0 }))
	return engine, tm, tx, repo
}

// === Unit Tests ===

func TestReserve_Unit_BeginFails(t *testing.T) {
	engine, tm, _, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := engine.Reserve(context.Background(), ReserveInput{SeatID: "s1", CallerID: "alice"})

	assert.ErrorIs(t, err, seat.ErrStoreUnavailable)
	repo.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserve_Unit_GetForUpdateFails(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Rollback").Return(nil)
	repo.On("GetForUpdate", mock.Anything, tx, "s1").Return(nil, errors.New("canceling statement due to lock timeout"))

	_, err := engine.Reserve(context.Background(), ReserveInput{SeatID: "s1", CallerID: "alice"})

	assert.ErrorIs(t, err, seat.ErrStoreUnavailable)
	tx.AssertCalled(t, "Rollback")
	tx.AssertNotCalled(t, "Commit")
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserve_Unit_UniqueViolationAtWrite(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Rollback").Return(nil)
	repo.On("GetForUpdate", mock.Anything, tx, "s1").Return(freeSeat("s1"), nil)
	repo.On("FindActiveByHolder", mock.Anything, tx, "alice").Return(nil, seat.ErrSeatNotFound)
	repo.On("Update", mock.Anything, tx, mock.AnythingOfType("*seat.Seat")).Return(seat.ErrSeatConflict)

	_, err := engine.Reserve(context.Background(), ReserveInput{SeatID: "s1", CallerID: "alice"})

	assert.ErrorIs(t, err, seat.ErrSeatConflict)
	assert.NotErrorIs(t, err, seat.ErrStoreUnavailable)
	tx.AssertNotCalled(t, "Commit")
}

func TestReserve_Unit_CommitFails(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Commit").Return(errors.New("driver: bad connection"))
	tx.On("Rollback").Return(nil)
	repo.On("GetForUpdate", mock.Anything, tx, "s1").Return(freeSeat("s1"), nil)
	repo.On("FindActiveByHolder", mock.Anything, tx, "alice").Return(nil, seat.ErrSeatNotFound)
	repo.On("Update", mock.Anything, tx, mock.AnythingOfType("*seat.Seat")).Return(nil)

	s, err := engine.Reserve(context.Background(), ReserveInput{SeatID: "s1", CallerID: "alice"})

	assert.Nil(t, s)
	assert.ErrorIs(t, err, seat.ErrStoreUnavailable)
}

func TestReserve_Unit_WritesHoldFields(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)
	repo.On("GetForUpdate", mock.Anything, tx, "s1").Return(freeSeat("s1"), nil)
	repo.On("FindActiveByHolder", mock.Anything, tx, "alice").Return(nil, seat.ErrSeatNotFound)
	repo.On("Update", mock.Anything, tx, mock.MatchedBy(func(s *seat.Seat) bool {
		return s.Status == seat.StatusHeld &&
			s.IsHeldBy("alice") &&
			s.HeldAt != nil && s.HeldAt.Equal(t0) &&
			s.ExpiresAt != nil && s.ExpiresAt.Equal(t0.Add(5*time.Minute))
	})).Return(nil)

	s, err := engine.Reserve(context.Background(), ReserveInput{SeatID: "s1", CallerID: "alice"})

	require.NoError(t, err)
	assert.Equal(t, seat.StatusHeld, s.Status)
	tx.AssertCalled(t, "Commit")
	repo.AssertExpectations(t)
}

func TestExpireSweep_Unit_ReleasesScannedSeats(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	expired := []*seat.Seat{
		heldSeat("s1", "alice", t0.Add(-time.Minute)),
		heldSeat("s2", "bob", t0.Add(-time.Second)),
	}
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)
	repo.On("ScanExpiredHeld", mock.Anything, tx, t0, DefaultSweepBatchSize).Return(expired, nil)
	repo.On("Update", mock.Anything, tx, mock.MatchedBy(func(s *seat.Seat) bool {
		return s.IsFree() && s.Holder == nil && s.ExpiresAt == nil
	})).Return(nil).Twice()

	released, err := engine.ExpireSweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, released)
	repo.AssertExpectations(t)
}

func TestExpireSweep_Unit_CommitFailsReleasesNothing(t *testing.T) {
	engine, tm, tx, repo := newMockEngine()
	tm.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Commit").Return(errors.New("connection reset"))
	tx.On("Rollback").Return(nil)
	repo.On("ScanExpiredHeld", mock.Anything, tx, t0, DefaultSweepBatchSize).Return([]*seat.Seat{heldSeat("s1", "alice", t0.Add(-time.Minute))}, nil)
	repo.On("Update", mock.Anything, tx, mock.Anything).Return(nil)

	released, err := engine.ExpireSweep(context.Background())

	assert.Equal(t, 0, released)
	assert.ErrorIs(t, err, seat.ErrStoreUnavailable)
}

func TestReport_Unit_StoreFailure(t *testing.T) {
	engine, _, _, repo := newMockEngine()
	repo.On("Flag", mock.Anything, "s1", t0).Return(errors.New("timeout"))

	err := engine.Report(context.Background(), "s1")

	assert.ErrorIs(t, err, seat.ErrStoreUnavailable)
}
