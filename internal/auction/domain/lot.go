package domain

import (
	"time"

	"github.com/google/uuid"
)

// LotStatus is the lifecycle state of an auction lot. Transitions only go
// open -> closed or open -> sold, never back.
type LotStatus string

const (
	StatusOpen   LotStatus = "open"
	StatusClosed LotStatus = "closed"
	StatusSold   LotStatus = "sold"
)

// Lot is an auctionable bundle of pooled produce listings. Amounts are
// integers in the smallest currency unit, quantity is in the smallest
// produce unit.
type Lot struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Quantity  int64
	BasePrice int64
	Status    LotStatus
	// Deadline nil means the lot never auto-closes, only an operator can.
	Deadline     *time.Time
	WinningBidID *uuid.UUID

	// Running high, maintained transactionally by the store on every
	// accepted bid so admission never rescans the bid list.
	HighestAmount *int64
	HighestBidID  *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLot builds an open lot from pooled listings.
func NewLot(ownerID uuid.UUID, name string, quantity, basePrice int64, deadline *time.Time) (*Lot, error) {
	if name == "" {
		return nil, ErrInvalidLot
	}
	if quantity <= 0 || basePrice <= 0 {
		return nil, ErrInvalidLot
	}
	return &Lot{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Quantity:  quantity,
		BasePrice: basePrice,
		Status:    StatusOpen,
		Deadline:  deadline,
	}, nil
}

// IsOpen reports whether the lot still admits bids.
func (l *Lot) IsOpen() bool {
	return l.Status == StatusOpen
}

// MinNextBid is the smallest amount the next bid must reach: the base price
// while no bid exists, otherwise one unit above the running high.
func (l *Lot) MinNextBid() int64 {
	if l.HighestAmount == nil {
		return l.BasePrice
	}
	return *l.HighestAmount + 1
}
