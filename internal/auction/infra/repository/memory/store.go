package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
)

// lotRecord keeps one lot and its bids behind a dedicated mutex, so
// conditional writes on one lot never block another.
type lotRecord struct {
	mu   sync.Mutex
	lot  domain.Lot
	bids []domain.Bid
}

// LedgerStore is the in-process implementation of domain.LedgerStore, used
// by tests and single-node deployments. Semantics mirror the Postgres
// store: per-lot serialization, conditional writes, store-assigned bid
// timestamps.
type LedgerStore struct {
	mu   sync.RWMutex
	lots map[uuid.UUID]*lotRecord
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		lots: make(map[uuid.UUID]*lotRecord),
	}
}

func (s *LedgerStore) CreateLot(_ context.Context, lot *domain.Lot) error {
	now := time.Now()
	lot.CreatedAt = now
	lot.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots[lot.ID] = &lotRecord{lot: *lot}
	return nil
}

func (s *LedgerStore) GetLot(_ context.Context, id uuid.UUID) (*domain.Lot, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	lot := rec.lot
	return &lot, nil
}

func (s *LedgerStore) GetHighestBid(_ context.Context, lotID uuid.UUID) (*domain.Bid, error) {
	rec, err := s.record(lotID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return highestOf(rec.bids), nil
}

func (s *LedgerStore) InsertBid(_ context.Context, bid *domain.Bid, expectedHigh *int64) (bool, error) {
	rec, err := s.record(bid.LotID)
	if err != nil {
		return false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.lot.Status != domain.StatusOpen {
		return false, nil
	}
	if !int64PtrEqual(rec.lot.HighestAmount, expectedHigh) {
		return false, nil
	}

	bid.CreatedAt = time.Now()
	rec.bids = append(rec.bids, *bid)

	amount := bid.Amount
	id := bid.ID
	rec.lot.HighestAmount = &amount
	rec.lot.HighestBidID = &id
	rec.lot.UpdatedAt = bid.CreatedAt
	return true, nil
}

func (s *LedgerStore) ConditionalCloseLot(_ context.Context, lotID uuid.UUID,
	expected, newStatus domain.LotStatus, winningBidID *uuid.UUID) (bool, error) {
	rec, err := s.record(lotID)
	if err != nil {
		return false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.lot.Status != expected {
		return false, nil
	}
	if !uuidPtrEqual(rec.lot.HighestBidID, winningBidID) {
		return false, nil
	}

	rec.lot.Status = newStatus
	rec.lot.WinningBidID = winningBidID
	rec.lot.UpdatedAt = time.Now()
	return true, nil
}

func (s *LedgerStore) ListOpenLotsWithDeadline(_ context.Context) ([]*domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lots []*domain.Lot
	for _, rec := range s.lots {
		rec.mu.Lock()
		if rec.lot.Status == domain.StatusOpen && rec.lot.Deadline != nil {
			lot := rec.lot
			lots = append(lots, &lot)
		}
		rec.mu.Unlock()
	}
	return lots, nil
}

// BidsForLot returns the accepted bids in acceptance order. Not part of
// domain.LedgerStore, tests use it to check monotonicity.
func (s *LedgerStore) BidsForLot(lotID uuid.UUID) []domain.Bid {
	rec, err := s.record(lotID)
	if err != nil {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]domain.Bid, len(rec.bids))
	copy(out, rec.bids)
	return out
}

func (s *LedgerStore) record(id uuid.UUID) (*lotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.lots[id]
	if !ok {
		return nil, domain.ErrLotNotFound
	}
	return rec, nil
}

func highestOf(bids []domain.Bid) *domain.Bid {
	if len(bids) == 0 {
		return nil
	}
	sorted := make([]domain.Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	winner := sorted[0]
	return &winner
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
