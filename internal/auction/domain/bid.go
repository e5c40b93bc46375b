package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid is a single monotonically-valid offer against an open lot. Once
// accepted it is immutable.
type Bid struct {
	ID       uuid.UUID
	LotID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
	// CreatedAt is assigned by the store at insert time, it is the
	// authoritative tie-break timestamp.
	CreatedAt time.Time
}

// NewBid creates an unpersisted bid, id pre-assigned, timestamp left for the
// store.
func NewBid(lotID, bidderID uuid.UUID, amount int64) *Bid {
	return &Bid{
		ID:       uuid.New(),
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   amount,
	}
}
