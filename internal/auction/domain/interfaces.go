package domain

import (
	"context"

	"github.com/google/uuid"
)

// LedgerStore is the durable keyed storage for lots and bids. It is the sole
// shared mutable resource of the engine: every cross-component coordination
// goes through its conditional writes, no caller holds a lock across a call.
type LedgerStore interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, id uuid.UUID) (*Lot, error)

	// GetHighestBid returns the winning candidate for the lot: highest
	// amount first, earliest timestamp breaks ties. (nil, nil) when the lot
	// has no bids.
	GetHighestBid(ctx context.Context, lotID uuid.UUID) (*Bid, error)

	// InsertBid persists the bid and advances the lot's running high in one
	// atomic step, but only while the lot is still open and its running
	// high still equals expectedHigh (nil when the caller saw no bids).
	// applied=false means a concurrent writer got there first; the caller
	// must re-read and re-validate. The store assigns bid.CreatedAt.
	InsertBid(ctx context.Context, bid *Bid, expectedHigh *int64) (applied bool, err error)

	// ConditionalCloseLot transitions the lot from expected to newStatus and
	// records the winning bid, but only if the status still matches and
	// winningBidID is still the lot's running high. applied=false means the
	// caller lost the race (another closer finished, or a newer bid slid
	// in) and must re-read.
	ConditionalCloseLot(ctx context.Context, lotID uuid.UUID, expected, newStatus LotStatus, winningBidID *uuid.UUID) (applied bool, err error)

	// ListOpenLotsWithDeadline returns every open lot carrying a deadline,
	// past or future. The scheduler splits them at startup.
	ListOpenLotsWithDeadline(ctx context.Context) ([]*Lot, error)
}
