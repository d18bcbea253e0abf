package usecase

import (
	"context"

	"github.com/iho/clubmarket/internal/domain"
)

// TransferUseCase serves the transfer history written by settlements.
type TransferUseCase struct {
	transferRepo TransferRepository
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(transferRepo TransferRepository) *TransferUseCase {
	return &TransferUseCase{transferRepo: transferRepo}
}

// GetTransfer retrieves a transfer by ID.
func (uc *TransferUseCase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return uc.transferRepo.GetByID(ctx, id)
}

// ListTransfers lists transfers of a player or a club, newest first.
func (uc *TransferUseCase) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	if filter.Limit > 100 {
		filter.Limit = 100
	}

	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return uc.transferRepo.List(ctx, filter)
}
