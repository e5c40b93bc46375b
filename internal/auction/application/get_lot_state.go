package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
)

// LotStateDTO is the lot snapshot exposed to observers and dashboards.
type LotStateDTO struct {
	LotID        uuid.UUID  `json:"lot_id"`
	Name         string     `json:"name"`
	Quantity     int64      `json:"quantity"`
	BasePrice    int64      `json:"base_price"`
	Status       string     `json:"status"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	MinNextBid   int64      `json:"min_next_bid"`
	HighestBid   *int64     `json:"highest_bid,omitempty"`
	HighBidderID *uuid.UUID `json:"high_bidder_id,omitempty"`
	WinningBidID *uuid.UUID `json:"winning_bid_id,omitempty"`
}

// GetLotStateUseCase reads the current state of a lot plus its high bid.
type GetLotStateUseCase struct {
	store domain.LedgerStore
}

func NewGetLotStateUseCase(store domain.LedgerStore) *GetLotStateUseCase {
	return &GetLotStateUseCase{store: store}
}

func (uc *GetLotStateUseCase) Execute(ctx context.Context, lotID uuid.UUID) (*LotStateDTO, error) {
	lot, err := uc.store.GetLot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("get lot state: %w", err)
	}

	dto := &LotStateDTO{
		LotID:        lot.ID,
		Name:         lot.Name,
		Quantity:     lot.Quantity,
		BasePrice:    lot.BasePrice,
		Status:       string(lot.Status),
		Deadline:     lot.Deadline,
		MinNextBid:   lot.MinNextBid(),
		HighestBid:   lot.HighestAmount,
		WinningBidID: lot.WinningBidID,
	}

	if lot.HighestBidID != nil {
		if bid, err := uc.store.GetHighestBid(ctx, lotID); err == nil && bid != nil {
			dto.HighBidderID = &bid.BidderID
		}
	}

	return dto, nil
}
