package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadlineRegistrar is what the lot creator needs from the deadline
// scheduler: register exactly one timer for a lot with a future deadline.
type DeadlineRegistrar interface {
	Register(lotID uuid.UUID, deadline time.Time)
}

// CreateLotDTO carries an owner's request to pool approved listings into an
// open lot.
type CreateLotDTO struct {
	OwnerID   uuid.UUID
	Name      string
	Quantity  int64
	BasePrice int64
	Deadline  *time.Time
}

// CreateLotUseCase opens a lot and, when it carries a future deadline, hands
// it to the scheduler.
type CreateLotUseCase struct {
	store     domain.LedgerStore
	registrar DeadlineRegistrar
}

func NewCreateLotUseCase(store domain.LedgerStore, registrar DeadlineRegistrar) *CreateLotUseCase {
	return &CreateLotUseCase{
		store:     store,
		registrar: registrar,
	}
}

func (uc *CreateLotUseCase) Execute(ctx context.Context, cmd CreateLotDTO) (*domain.Lot, error) {
	lot, err := domain.NewLot(cmd.OwnerID, cmd.Name, cmd.Quantity, cmd.BasePrice, cmd.Deadline)
	if err != nil {
		return nil, err
	}

	if err := uc.store.CreateLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("create lot: %w", err)
	}

	if uc.registrar != nil && lot.Deadline != nil {
		uc.registrar.Register(lot.ID, *lot.Deadline)
	}

	log.Info("Lot created",
		zap.String("lotID", lot.ID.String()),
		zap.String("ownerID", lot.OwnerID.String()),
		zap.Int64("basePrice", lot.BasePrice),
		zap.Bool("hasDeadline", lot.Deadline != nil),
	)
	return lot, nil
}
