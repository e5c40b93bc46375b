package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/application"
	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/cristianortiz/harvestAuction/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore injects transient close failures to exercise the retry path.
type flakyStore struct {
	*memory.LedgerStore
	failures int32
}

func (s *flakyStore) ConditionalCloseLot(ctx context.Context, lotID uuid.UUID,
	expected, newStatus domain.LotStatus, winningBidID *uuid.UUID) (bool, error) {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return false, &domain.StorageError{Op: "conditional close lot", Err: errors.New("connection reset")}
	}
	return s.LedgerStore.ConditionalCloseLot(ctx, lotID, expected, newStatus, winningBidID)
}

func testOptions() Options {
	return Options{
		RetryBase:  10 * time.Millisecond,
		RetryMax:   50 * time.Millisecond,
		MaxRetries: 5,
	}
}

func setup(t *testing.T, store domain.LedgerStore) (*Scheduler, application.AuctionService) {
	t.Helper()
	sched := New(store, testOptions())
	svc := application.NewAuctionService(store, nil, eventbus.NewInProcBus(), sched)
	sched.Attach(svc)
	t.Cleanup(sched.Stop)
	return sched, svc
}

func createLot(t *testing.T, svc application.AuctionService, deadline *time.Time) *domain.Lot {
	t.Helper()
	lot, err := svc.CreateLot(context.Background(), application.CreateLotDTO{
		OwnerID:   uuid.New(),
		Name:      "pooled coffee",
		Quantity:  200,
		BasePrice: 100,
		Deadline:  deadline,
	})
	require.NoError(t, err)
	return lot
}

func lotStatus(t *testing.T, store domain.LedgerStore, id uuid.UUID) domain.LotStatus {
	t.Helper()
	lot, err := store.GetLot(context.Background(), id)
	require.NoError(t, err)
	return lot.Status
}

func TestSchedulerClosesLotAtDeadline(t *testing.T) {
	store := memory.NewLedgerStore()
	sched, svc := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	deadline := time.Now().Add(80 * time.Millisecond)
	lot := createLot(t, svc, &deadline)

	_, err := svc.PlaceBid(context.Background(), application.PlaceBidDTO{
		LotID:    lot.ID,
		BidderID: uuid.New(),
		Amount:   150,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return lotStatus(t, store, lot.ID) == domain.StatusSold
	}, 2*time.Second, 10*time.Millisecond, "deadline must close the lot without further triggers")
}

func TestSchedulerRecoveryFinalizesOverdueLots(t *testing.T) {
	store := memory.NewLedgerStore()

	// lot went past its deadline while the process was down: created here
	// with no scheduler attached
	past := time.Now().Add(-time.Minute)
	createUC := application.NewCreateLotUseCase(store, nil)
	overdue, err := createUC.Execute(context.Background(), application.CreateLotDTO{
		OwnerID:   uuid.New(),
		Name:      "overdue lot",
		Quantity:  50,
		BasePrice: 100,
		Deadline:  &past,
	})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	pending, err := createUC.Execute(context.Background(), application.CreateLotDTO{
		OwnerID:   uuid.New(),
		Name:      "pending lot",
		Quantity:  50,
		BasePrice: 100,
		Deadline:  &future,
	})
	require.NoError(t, err)

	sched, _ := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	require.Eventually(t, func() bool {
		return lotStatus(t, store, overdue.ID) == domain.StatusClosed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.StatusOpen, lotStatus(t, store, pending.ID),
		"lots with future deadlines stay open and merely get a timer")
}

func TestSchedulerRetriesTransientStorageErrors(t *testing.T) {
	store := &flakyStore{LedgerStore: memory.NewLedgerStore(), failures: 2}
	sched, svc := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	deadline := time.Now().Add(50 * time.Millisecond)
	lot := createLot(t, svc, &deadline)

	require.Eventually(t, func() bool {
		return lotStatus(t, store, lot.ID) == domain.StatusClosed
	}, 3*time.Second, 10*time.Millisecond, "transient failures must be retried, not dropped")
}

func TestSchedulerFireAfterManualCloseIsNoOp(t *testing.T) {
	store := memory.NewLedgerStore()
	sched, svc := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	deadline := time.Now().Add(150 * time.Millisecond)
	lot := createLot(t, svc, &deadline)

	// operator beats the timer
	result, err := svc.Finalize(context.Background(), application.FinalizeDTO{
		LotID: lot.ID,
		Actor: "admin-3",
	})
	require.NoError(t, err)
	require.True(t, result.Finalized)

	// let the timer fire against the already-terminal lot
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, domain.StatusClosed, lotStatus(t, store, lot.ID))
}

func TestSchedulerStopSuppressesLateTimerFires(t *testing.T) {
	store := memory.NewLedgerStore()
	sched, svc := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	lot := createLot(t, svc, nil)
	sched.Stop()

	// a timer callback landing after Stop must neither fire nor escape the
	// shutdown wait
	sched.Register(lot.ID, time.Now().Add(-time.Second))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, domain.StatusOpen, lotStatus(t, store, lot.ID),
		"fires after Stop are suppressed")
}

func TestSchedulerLotsWithoutDeadlineNeverAutoClose(t *testing.T) {
	store := memory.NewLedgerStore()
	sched, svc := setup(t, store)
	require.NoError(t, sched.Start(context.Background()))

	lot := createLot(t, svc, nil)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, domain.StatusOpen, lotStatus(t, store, lot.ID))
}
