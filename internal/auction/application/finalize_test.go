package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	events, err := f.bus.Subscribe(ctx, domain.LotTopic(lot.ID))
	require.NoError(t, err)

	_, err = f.svc.PlaceBid(ctx, PlaceBidDTO{LotID: lot.ID, BidderID: uuid.New(), Amount: 180})
	require.NoError(t, err)

	// timer fire, manual closes and a recovery sweep all racing
	const callers = 32
	var finalized, noops int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := domain.ActorSystem
			if n%2 == 0 {
				actor = fmt.Sprintf("admin-%d", n)
			}
			result, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: actor})
			if assert.NoError(t, err) {
				if result.Finalized {
					atomic.AddInt64(&finalized, 1)
				} else {
					atomic.AddInt64(&noops, 1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), finalized, "exactly one caller performs the transition")
	assert.Equal(t, int64(callers-1), noops, "everyone else observes a no-op")

	var closedEvents int
	for _, env := range drain(events) {
		if env.Type == domain.EventTypeLotClosed {
			closedEvents++
		}
	}
	assert.Equal(t, 1, closedEvents, "exactly one lot-closed publish")
}

func TestFinalizeWinnerCorrectness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	var last *domain.Bid
	for _, amount := range []int64{110, 140, 175, 320} {
		bid, err := f.svc.PlaceBid(ctx, PlaceBidDTO{LotID: lot.ID, BidderID: uuid.New(), Amount: amount})
		require.NoError(t, err)
		last = bid
	}

	result, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: "admin-1"})
	require.NoError(t, err)
	require.True(t, result.Finalized)
	require.NotNil(t, result.WinningBid)
	assert.Equal(t, last.ID, result.WinningBid.ID)
	assert.Equal(t, int64(320), result.WinningBid.Amount)

	stored, err := f.store.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, stored.Status)
	require.NotNil(t, stored.WinningBidID)
	assert.Equal(t, last.ID, *stored.WinningBidID)
}

func TestFinalizeNoBidsClosesWithNoSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	events, err := f.bus.Subscribe(ctx, domain.LotTopic(lot.ID))
	require.NoError(t, err)

	result, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: domain.ActorSystem})
	require.NoError(t, err)
	require.True(t, result.Finalized)
	assert.Nil(t, result.WinningBid)
	assert.Equal(t, domain.StatusClosed, result.Lot.Status, "no winner means closed, not sold")

	msg := <-events
	var event domain.LotClosedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, domain.EventTypeLotClosed, event.Type)
	assert.Nil(t, event.WinningBid)
	assert.Equal(t, domain.ActorSystem, event.Actor)
}

func TestFinalizeIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	_, err := f.svc.PlaceBid(ctx, PlaceBidDTO{LotID: lot.ID, BidderID: uuid.New(), Amount: 150})
	require.NoError(t, err)

	first, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: "admin-1"})
	require.NoError(t, err)
	require.True(t, first.Finalized)

	events, err := f.bus.Subscribe(ctx, domain.LotTopic(lot.ID))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: domain.ActorSystem})
		require.NoError(t, err)
		assert.False(t, again.Finalized)
		assert.Equal(t, first.Lot.Status, again.Lot.Status, "re-finalization never mutates state")
	}

	assert.Empty(t, drain(events), "re-finalization never republishes")
}

func TestFinalizeForcedTerminalStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	bid, err := f.svc.PlaceBid(ctx, PlaceBidDTO{LotID: lot.ID, BidderID: uuid.New(), Amount: 200})
	require.NoError(t, err)

	result, err := f.svc.Finalize(ctx, FinalizeDTO{
		LotID:  lot.ID,
		Actor:  "admin-9",
		Status: domain.StatusClosed,
	})
	require.NoError(t, err)
	require.True(t, result.Finalized)
	assert.Equal(t, domain.StatusClosed, result.Lot.Status)
	// bids existed at closure, so the winning reference is still recorded
	require.NotNil(t, result.Lot.WinningBidID)
	assert.Equal(t, bid.ID, *result.Lot.WinningBidID)
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	lot := f.openLot(t, 100, nil)

	_, err := f.svc.PlaceBid(ctx, PlaceBidDTO{LotID: lot.ID, BidderID: uuid.New(), Amount: 150})
	require.NoError(t, err)

	for _, status := range []domain.LotStatus{domain.StatusOpen, "reopened"} {
		_, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: "admin-1", Status: status})
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	}

	// rejected requests never touch the ledger
	stored, err := f.store.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Nil(t, stored.WinningBidID)

	// and the lot still finalizes exactly once afterwards
	first, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: "admin-1"})
	require.NoError(t, err)
	assert.True(t, first.Finalized)
	again, err := f.svc.Finalize(ctx, FinalizeDTO{LotID: lot.ID, Actor: "admin-1"})
	require.NoError(t, err)
	assert.False(t, again.Finalized)
}

func TestFinalizeUnknownLot(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.Finalize(context.Background(), FinalizeDTO{LotID: uuid.New(), Actor: "admin-1"})
	assert.ErrorIs(t, err, domain.ErrLotNotFound)
}
