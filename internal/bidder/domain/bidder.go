package domain

import (
	"context"

	"github.com/google/uuid"
)

// Bidder is the read-only projection of a buyer account. Identity and
// authentication live in another system, the engine only needs the display
// name to enrich bid events.
type Bidder struct {
	ID          uuid.UUID
	DisplayName string
}

// BidderRepository looks bidders up by id. A nil Bidder with nil error means
// the bidder is unknown to this projection, which is not a failure.
type BidderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Bidder, error)
}
