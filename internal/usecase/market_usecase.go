package usecase

import (
	"context"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// MarketUseCase reads and toggles the transfer window.
type MarketUseCase struct {
	txManager  TransactionManager
	gate       MarketGate
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	metrics    *metrics.Metrics
}

// NewMarketUseCase creates a new MarketUseCase.
func NewMarketUseCase(
	txManager TransactionManager,
	gate MarketGate,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *MarketUseCase {
	return &MarketUseCase{
		txManager:  txManager,
		gate:       gate,
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		idGen:      idGen,
		metrics:    metrics,
	}
}

// IsOpen reports whether offers may currently be answered.
func (uc *MarketUseCase) IsOpen(ctx context.Context) (bool, error) {
	return uc.gate.IsOpen(ctx)
}

// SetOpen opens or closes the transfer window. Setting the current value is a no-op.
func (uc *MarketUseCase) SetOpen(ctx context.Context, open bool) error {
	previous, err := uc.gate.IsOpen(ctx)
	if err != nil {
		return err
	}
	if previous == open {
		return nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	eventType := domain.EventTypeMarketClosed
	if open {
		eventType = domain.EventTypeMarketOpened
	}

	event := newOutboxEvent(uc.idGen, domain.AggregateTypeMarket, "transfer-window", eventType, map[string]any{
		"open":       open,
		"changed_by": domain.ActorIDFromContext(ctx),
	}, now)
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	if uc.auditRepo != nil {
		auditLog := newAuditLog(ctx, uc.idGen, domain.AuditActionMarketToggle, domain.AggregateTypeMarket, "transfer-window",
			map[string]any{"open": previous}, map[string]any{"open": open}, now)
		if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return err
		}
	}

	if err := uc.gate.SetOpen(ctx, open); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		// The toggle was not recorded, restore the flag.
		_ = uc.gate.SetOpen(context.WithoutCancel(ctx), previous)
		return err
	}

	if uc.metrics != nil {
		if open {
			uc.metrics.MarketOpen.Set(1)
		} else {
			uc.metrics.MarketOpen.Set(0)
		}
	}

	return nil
}
