package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLot(t *testing.T, store *LedgerStore, basePrice int64) *domain.Lot {
	t.Helper()
	lot, err := domain.NewLot(uuid.New(), "pooled onions", 100, basePrice, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateLot(context.Background(), lot))
	return lot
}

func TestInsertBidConditional(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	lot := openLot(t, store, 100)

	first := domain.NewBid(lot.ID, uuid.New(), 120)
	applied, err := store.InsertBid(ctx, first, nil)
	require.NoError(t, err)
	require.True(t, applied)
	assert.False(t, first.CreatedAt.IsZero(), "store assigns the timestamp")

	// stale expectation: caller still thinks there are no bids
	stale := domain.NewBid(lot.ID, uuid.New(), 150)
	applied, err = store.InsertBid(ctx, stale, nil)
	require.NoError(t, err)
	assert.False(t, applied, "insert keyed on a stale running high must not apply")

	// fresh expectation applies
	high := int64(120)
	second := domain.NewBid(lot.ID, uuid.New(), 150)
	applied, err = store.InsertBid(ctx, second, &high)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	require.NotNil(t, got.HighestAmount)
	assert.Equal(t, int64(150), *got.HighestAmount)
	assert.Equal(t, second.ID, *got.HighestBidID)
}

func TestInsertBidRejectedOnTerminalLot(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	lot := openLot(t, store, 100)

	applied, err := store.ConditionalCloseLot(ctx, lot.ID, domain.StatusOpen, domain.StatusClosed, nil)
	require.NoError(t, err)
	require.True(t, applied)

	bid := domain.NewBid(lot.ID, uuid.New(), 500)
	applied, err = store.InsertBid(ctx, bid, nil)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestConditionalCloseLot(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	lot := openLot(t, store, 100)

	bid := domain.NewBid(lot.ID, uuid.New(), 200)
	applied, err := store.InsertBid(ctx, bid, nil)
	require.NoError(t, err)
	require.True(t, applied)

	// closing with a winner that is no longer the running high must fail
	wrong := uuid.New()
	applied, err = store.ConditionalCloseLot(ctx, lot.ID, domain.StatusOpen, domain.StatusSold, &wrong)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = store.ConditionalCloseLot(ctx, lot.ID, domain.StatusOpen, domain.StatusSold, &bid.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	// second close loses the status guard
	applied, err = store.ConditionalCloseLot(ctx, lot.ID, domain.StatusOpen, domain.StatusClosed, &bid.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, got.Status)
	assert.Equal(t, bid.ID, *got.WinningBidID)
}

func TestHighestBidTieBreak(t *testing.T) {
	now := time.Now()
	early := domain.Bid{ID: uuid.New(), Amount: 300, CreatedAt: now}
	late := domain.Bid{ID: uuid.New(), Amount: 300, CreatedAt: now.Add(time.Second)}
	lower := domain.Bid{ID: uuid.New(), Amount: 250, CreatedAt: now.Add(-time.Second)}

	winner := highestOf([]domain.Bid{late, lower, early})
	require.NotNil(t, winner)
	assert.Equal(t, early.ID, winner.ID, "equal amounts resolve to the earliest bid")

	assert.Nil(t, highestOf(nil))
}

func TestListOpenLotsWithDeadline(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	deadline := time.Now().Add(time.Hour)
	withDeadline, err := domain.NewLot(uuid.New(), "lot a", 10, 100, &deadline)
	require.NoError(t, err)
	require.NoError(t, store.CreateLot(ctx, withDeadline))

	openLot(t, store, 100) // no deadline, must not be listed

	closed, err := domain.NewLot(uuid.New(), "lot c", 10, 100, &deadline)
	require.NoError(t, err)
	require.NoError(t, store.CreateLot(ctx, closed))
	applied, err := store.ConditionalCloseLot(ctx, closed.ID, domain.StatusOpen, domain.StatusClosed, nil)
	require.NoError(t, err)
	require.True(t, applied)

	lots, err := store.ListOpenLotsWithDeadline(ctx)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, withDeadline.ID, lots[0].ID)
}

func TestGetLotNotFound(t *testing.T) {
	store := NewLedgerStore()
	_, err := store.GetLot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrLotNotFound)
}
