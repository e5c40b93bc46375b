package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerStore implements domain.LedgerStore on Postgres. Every conditional
// write is a single guarded statement or a short row-locked transaction, so
// serialization happens per lot row and unrelated lots never contend.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) CreateLot(ctx context.Context, lot *domain.Lot) error {
	query := `
        INSERT INTO lots (id, owner_id, name, quantity, base_price, status, deadline)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	err := s.pool.QueryRow(ctx, query,
		lot.ID,
		lot.OwnerID,
		lot.Name,
		lot.Quantity,
		lot.BasePrice,
		lot.Status,
		lot.Deadline,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return &domain.StorageError{Op: "create lot", Err: err}
	}
	return nil
}

const lotColumns = `id, owner_id, name, quantity, base_price, status, deadline,
        winning_bid_id, highest_amount, highest_bid_id, created_at, updated_at`

func (s *LedgerStore) GetLot(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`

	lot, err := scanLot(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLotNotFound
		}
		return nil, &domain.StorageError{Op: "get lot", Err: err}
	}
	return lot, nil
}

// ConditionalCloseLot is the engine's compare-and-swap: the transition
// applies only while the status still matches and the given winning bid is
// still the lot's running high. Zero rows affected means the caller lost the
// race, not an error.
func (s *LedgerStore) ConditionalCloseLot(ctx context.Context, lotID uuid.UUID,
	expected, newStatus domain.LotStatus, winningBidID *uuid.UUID) (bool, error) {
	query := `
        UPDATE lots
        SET status = $3, winning_bid_id = $4, updated_at = NOW()
        WHERE id = $1 AND status = $2 AND highest_bid_id IS NOT DISTINCT FROM $4
    `
	tag, err := s.pool.Exec(ctx, query, lotID, expected, newStatus, winningBidID)
	if err != nil {
		return false, &domain.StorageError{Op: "conditional close lot", Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

func (s *LedgerStore) ListOpenLotsWithDeadline(ctx context.Context) ([]*domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE status = $1 AND deadline IS NOT NULL`

	rows, err := s.pool.Query(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, &domain.StorageError{Op: "list open lots", Err: err}
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "list open lots", Err: err}
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list open lots", Err: err}
	}

	return lots, nil
}

func scanLot(row pgx.Row) (*domain.Lot, error) {
	lot := &domain.Lot{}
	err := row.Scan(
		&lot.ID,
		&lot.OwnerID,
		&lot.Name,
		&lot.Quantity,
		&lot.BasePrice,
		&lot.Status,
		&lot.Deadline,
		&lot.WinningBidID,
		&lot.HighestAmount,
		&lot.HighestBidID,
		&lot.CreatedAt,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return lot, nil
}
