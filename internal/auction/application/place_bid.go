package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	bidderdomain "github.com/cristianortiz/harvestAuction/internal/bidder/domain"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// admissionAttempts bounds how often a bid re-validates after losing the
// conditional insert to a writer in another process.
const admissionAttempts = 3

// PlaceBidDTO carries the data needed to admit one bid.
type PlaceBidDTO struct {
	LotID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
}

// PlaceBidUseCase is the bid admission service: the sole place where "is
// this bid acceptable" is decided. Admission is serialized per lot only,
// unrelated lots admit fully in parallel.
type PlaceBidUseCase struct {
	store   domain.LedgerStore
	bidders bidderdomain.BidderRepository
	bus     eventbus.Bus
	gate    *lotGate
}

func NewPlaceBidUseCase(store domain.LedgerStore, bidders bidderdomain.BidderRepository,
	bus eventbus.Bus, gate *lotGate) *PlaceBidUseCase {
	return &PlaceBidUseCase{
		store:   store,
		bidders: bidders,
		bus:     bus,
		gate:    gate,
	}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	if cmd.Amount <= 0 {
		log.Warn("Bid rejected: invalid amount",
			zap.String("lotID", cmd.LotID.String()),
			zap.String("bidderID", cmd.BidderID.String()),
			zap.Int64("amount", cmd.Amount),
		)
		return nil, domain.ErrInvalidAmount
	}

	unlock := uc.gate.lock(cmd.LotID)
	defer unlock()

	for attempt := 0; attempt < admissionAttempts; attempt++ {
		lot, err := uc.store.GetLot(ctx, cmd.LotID)
		if err != nil {
			return nil, fmt.Errorf("place bid: failed to get lot %s: %w", cmd.LotID, err)
		}
		if !lot.IsOpen() {
			log.Warn("Bid rejected: lot not open",
				zap.String("lotID", cmd.LotID.String()),
				zap.String("status", string(lot.Status)),
				zap.String("bidderID", cmd.BidderID.String()),
			)
			return nil, domain.ErrLotNotOpen
		}

		min := lot.MinNextBid()
		if cmd.Amount < min {
			log.Warn("Bid rejected: amount too low",
				zap.String("lotID", cmd.LotID.String()),
				zap.Int64("amount", cmd.Amount),
				zap.Int64("minRequired", min),
				zap.String("bidderID", cmd.BidderID.String()),
			)
			return nil, &domain.BidTooLowError{Offered: cmd.Amount, MinRequired: min}
		}

		bid := domain.NewBid(lot.ID, cmd.BidderID, cmd.Amount)
		applied, err := uc.store.InsertBid(ctx, bid, lot.HighestAmount)
		if err != nil {
			return nil, fmt.Errorf("place bid: failed to insert bid for lot %s: %w", cmd.LotID, err)
		}
		if !applied {
			// lost the conditional write to a concurrent bid, re-validate
			// against the fresh running high
			continue
		}

		uc.publishAccepted(ctx, bid)

		log.Info("Bid accepted",
			zap.String("lotID", cmd.LotID.String()),
			zap.String("bidID", bid.ID.String()),
			zap.String("bidderID", cmd.BidderID.String()),
			zap.Int64("amount", cmd.Amount),
		)
		return bid, nil
	}

	return nil, domain.ErrAdmissionContention
}

// publishAccepted emits the bid-accepted event on the lot topic and the
// global topic. The bid is already durable; a publish failure is logged and
// never unwinds the admission.
func (uc *PlaceBidUseCase) publishAccepted(ctx context.Context, bid *domain.Bid) {
	event := domain.BidAcceptedEvent{
		Type:  domain.EventTypeBidAccepted,
		LotID: bid.LotID,
		Bid:   domain.NewBidPayload(bid, uc.bidderName(ctx, bid.BidderID)),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal bid-accepted event",
			zap.String("bidID", bid.ID.String()),
			zap.Error(err),
		)
		return
	}

	if err := uc.bus.Publish(ctx, domain.LotTopic(bid.LotID), data); err != nil {
		log.Error("failed to publish bid-accepted event",
			zap.String("lotID", bid.LotID.String()),
			zap.Error(err),
		)
	}
	if err := uc.bus.Publish(ctx, domain.GlobalTopic, data); err != nil {
		log.Error("failed to publish bid-accepted event to global topic",
			zap.String("lotID", bid.LotID.String()),
			zap.Error(err),
		)
	}
}

// bidderName is best-effort enrichment: an unknown bidder or a degraded
// directory never blocks a bid.
func (uc *PlaceBidUseCase) bidderName(ctx context.Context, bidderID uuid.UUID) string {
	if uc.bidders == nil {
		return ""
	}
	bidder, err := uc.bidders.GetByID(ctx, bidderID)
	if err != nil {
		log.Warn("bidder lookup failed, publishing without display name",
			zap.String("bidderID", bidderID.String()),
			zap.Error(err),
		)
		return ""
	}
	if bidder == nil {
		return ""
	}
	return bidder.DisplayName
}
