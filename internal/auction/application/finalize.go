package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/cristianortiz/harvestAuction/internal/shared/eventbus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// closeAttempts bounds how often a closure re-resolves the winner after a
// newer bid invalidates its conditional write.
const closeAttempts = 10

// FinalizeDTO identifies the lot to finalize and who asked for it. Status
// optionally forces the terminal status (closed or sold, anything else is
// rejected); when empty the engine picks sold (winner exists) or closed
// (no bids).
type FinalizeDTO struct {
	LotID  uuid.UUID
	Actor  string
	Status domain.LotStatus
}

// ClosureResult reports one Finalize call. Finalized=false is the NoOp
// outcome: the lot was already terminal, or this caller lost the closing
// race. Exactly one caller per lot ever sees Finalized=true.
type ClosureResult struct {
	Lot        *domain.Lot
	WinningBid *domain.Bid
	Actor      string
	Finalized  bool
}

// FinalizeUseCase is the closure engine, the single state-machine authority
// for a lot's terminal transition. Timers, operators and recovery sweeps all
// funnel through here; the store's conditional update makes the transition
// happen exactly once no matter how many callers race.
type FinalizeUseCase struct {
	store domain.LedgerStore
	bus   eventbus.Bus
	gate  *lotGate
}

func NewFinalizeUseCase(store domain.LedgerStore, bus eventbus.Bus, gate *lotGate) *FinalizeUseCase {
	return &FinalizeUseCase{
		store: store,
		bus:   bus,
		gate:  gate,
	}
}

func (uc *FinalizeUseCase) Execute(ctx context.Context, cmd FinalizeDTO) (*ClosureResult, error) {
	// the engine owns the state machine: callers may pick between the two
	// terminal statuses but never write anything else through it
	switch cmd.Status {
	case "", domain.StatusClosed, domain.StatusSold:
	default:
		return nil, fmt.Errorf("finalize: status %q: %w", cmd.Status, domain.ErrInvalidStatus)
	}

	unlock := uc.gate.lock(cmd.LotID)
	defer unlock()

	for attempt := 0; attempt < closeAttempts; attempt++ {
		lot, err := uc.store.GetLot(ctx, cmd.LotID)
		if err != nil {
			return nil, fmt.Errorf("finalize: failed to get lot %s: %w", cmd.LotID, err)
		}
		if !lot.IsOpen() {
			// already finalized by another path, idempotent no-op
			log.Debug("Finalize no-op: lot already terminal",
				zap.String("lotID", cmd.LotID.String()),
				zap.String("status", string(lot.Status)),
				zap.String("actor", cmd.Actor),
			)
			uc.gate.forget(cmd.LotID)
			return &ClosureResult{Lot: lot, Actor: cmd.Actor, Finalized: false}, nil
		}

		winning, err := uc.store.GetHighestBid(ctx, cmd.LotID)
		if err != nil {
			return nil, fmt.Errorf("finalize: failed to resolve winner for lot %s: %w", cmd.LotID, err)
		}

		newStatus := cmd.Status
		if newStatus == "" {
			if winning != nil {
				newStatus = domain.StatusSold
			} else {
				newStatus = domain.StatusClosed
			}
		}

		var winningID *uuid.UUID
		if winning != nil {
			winningID = &winning.ID
		}

		applied, err := uc.store.ConditionalCloseLot(ctx, cmd.LotID, domain.StatusOpen, newStatus, winningID)
		if err != nil {
			return nil, fmt.Errorf("finalize: conditional close failed for lot %s: %w", cmd.LotID, err)
		}
		if !applied {
			// either another closer won (next read returns NoOp) or a newer
			// bid moved the running high (next read re-resolves the winner)
			continue
		}

		lot.Status = newStatus
		lot.WinningBidID = winningID
		uc.publishClosed(ctx, lot, winning, cmd.Actor)
		uc.gate.forget(cmd.LotID)

		log.Info("Lot finalized",
			zap.String("lotID", cmd.LotID.String()),
			zap.String("status", string(newStatus)),
			zap.String("actor", cmd.Actor),
			zap.Bool("sold", winning != nil),
		)
		return &ClosureResult{
			Lot:        lot,
			WinningBid: winning,
			Actor:      cmd.Actor,
			Finalized:  true,
		}, nil
	}

	return nil, &domain.StorageError{
		Op:  "conditional close",
		Err: fmt.Errorf("lot %s: close kept losing to concurrent bids", cmd.LotID),
	}
}

// publishClosed emits the single lot-closed event for this lot, on its topic
// and the global topic. The transition is already durable; a publish failure
// is logged, never unwound.
func (uc *FinalizeUseCase) publishClosed(ctx context.Context, lot *domain.Lot, winning *domain.Bid, actor string) {
	event := domain.LotClosedEvent{
		Type:   domain.EventTypeLotClosed,
		LotID:  lot.ID,
		Status: lot.Status,
		Actor:  actor,
	}
	if winning != nil {
		payload := domain.NewBidPayload(winning, "")
		event.WinningBid = &payload
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal lot-closed event",
			zap.String("lotID", lot.ID.String()),
			zap.Error(err),
		)
		return
	}

	if err := uc.bus.Publish(ctx, domain.LotTopic(lot.ID), data); err != nil {
		log.Error("failed to publish lot-closed event",
			zap.String("lotID", lot.ID.String()),
			zap.Error(err),
		)
	}
	if err := uc.bus.Publish(ctx, domain.GlobalTopic, data); err != nil {
		log.Error("failed to publish lot-closed event to global topic",
			zap.String("lotID", lot.ID.String()),
			zap.Error(err),
		)
	}
}
