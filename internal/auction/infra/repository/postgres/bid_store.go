package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetHighestBid resolves the winning candidate: highest amount first,
// earliest timestamp breaks ties. (nil, nil) when the lot has no bids.
func (s *LedgerStore) GetHighestBid(ctx context.Context, lotID uuid.UUID) (*domain.Bid, error) {
	query := `
        SELECT id, lot_id, bidder_id, amount, created_at
        FROM bids
        WHERE lot_id = $1
        ORDER BY amount DESC, created_at ASC
        LIMIT 1
    `
	bid := &domain.Bid{}
	err := s.pool.QueryRow(ctx, query, lotID).Scan(
		&bid.ID,
		&bid.LotID,
		&bid.BidderID,
		&bid.Amount,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "get highest bid", Err: err}
	}

	return bid, nil
}

// InsertBid persists the bid and advances the lot's running high in one
// transaction. The lot row is locked FOR UPDATE, which serializes admission
// per lot at the store; the expectedHigh guard turns a lost race into
// applied=false so the caller re-validates instead of double-accepting.
func (s *LedgerStore) InsertBid(ctx context.Context, bid *domain.Bid, expectedHigh *int64) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, &domain.StorageError{Op: "insert bid: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status domain.LotStatus
	var currentHigh *int64
	err = tx.QueryRow(ctx,
		`SELECT status, highest_amount FROM lots WHERE id = $1 FOR UPDATE`,
		bid.LotID,
	).Scan(&status, &currentHigh)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrLotNotFound
		}
		return false, &domain.StorageError{Op: "insert bid: lock lot", Err: err}
	}

	if status != domain.StatusOpen {
		return false, nil
	}
	if !int64PtrEqual(currentHigh, expectedHigh) {
		return false, nil
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO bids (id, lot_id, bidder_id, amount) VALUES ($1, $2, $3, $4)
         RETURNING created_at`,
		bid.ID, bid.LotID, bid.BidderID, bid.Amount,
	).Scan(&bid.CreatedAt)
	if err != nil {
		return false, &domain.StorageError{Op: "insert bid", Err: err}
	}

	_, err = tx.Exec(ctx,
		`UPDATE lots SET highest_amount = $2, highest_bid_id = $3, updated_at = NOW()
         WHERE id = $1`,
		bid.LotID, bid.Amount, bid.ID,
	)
	if err != nil {
		return false, &domain.StorageError{Op: "insert bid: advance high", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &domain.StorageError{Op: "insert bid: commit", Err: err}
	}
	return true, nil
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
