package application

import (
	"context"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	bidderdomain "github.com/cristianortiz/harvestAuction/internal/bidder/domain"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/google/uuid"
)

// AuctionService is the application surface of the auction module, what the
// scheduler and the transport adapters call into.
type AuctionService interface {
	CreateLot(ctx context.Context, cmd CreateLotDTO) (*domain.Lot, error)
	// PlaceBid admits one bid against an open lot, or explains why not.
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error)
	// Finalize transitions a lot to its terminal state exactly once;
	// redundant calls get a NoOp result.
	Finalize(ctx context.Context, cmd FinalizeDTO) (*ClosureResult, error)
	GetLotState(ctx context.Context, lotID uuid.UUID) (*LotStateDTO, error)
}

type auctionService struct {
	createLotUC   *CreateLotUseCase
	placeBidUC    *PlaceBidUseCase
	finalizeUC    *FinalizeUseCase
	getLotStateUC *GetLotStateUseCase
}

// NewAuctionService wires the use cases over one shared per-lot gate so bid
// admission and closure sequence their event emission together.
func NewAuctionService(store domain.LedgerStore, bidders bidderdomain.BidderRepository,
	bus eventbus.Bus, registrar DeadlineRegistrar) AuctionService {
	gate := newLotGate()
	return &auctionService{
		createLotUC:   NewCreateLotUseCase(store, registrar),
		placeBidUC:    NewPlaceBidUseCase(store, bidders, bus, gate),
		finalizeUC:    NewFinalizeUseCase(store, bus, gate),
		getLotStateUC: NewGetLotStateUseCase(store),
	}
}

func (as *auctionService) CreateLot(ctx context.Context, cmd CreateLotDTO) (*domain.Lot, error) {
	return as.createLotUC.Execute(ctx, cmd)
}

func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	return as.placeBidUC.Execute(ctx, cmd)
}

func (as *auctionService) Finalize(ctx context.Context, cmd FinalizeDTO) (*ClosureResult, error) {
	return as.finalizeUC.Execute(ctx, cmd)
}

func (as *auctionService) GetLotState(ctx context.Context, lotID uuid.UUID) (*LotStateDTO, error) {
	return as.getLotStateUC.Execute(ctx, lotID)
}
