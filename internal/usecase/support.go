package usecase

import (
	"context"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

func withRetry(ctx context.Context, retrier Retrier, operation func() error) error {
	if retrier == nil {
		return operation()
	}
	return retrier.Retry(ctx, operation)
}

func ensureMarketOpen(ctx context.Context, gate MarketGate) error {
	if gate == nil {
		return nil
	}
	open, err := gate.IsOpen(ctx)
	if err != nil {
		return err
	}
	if !open {
		return domain.ErrMarketClosed
	}
	return nil
}

func newOutboxEvent(idGen IDGenerator, aggregateType, aggregateID, eventType string, payload map[string]any, now time.Time) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Published:     false,
	}
}

func newAuditLog(ctx context.Context, idGen IDGenerator, action domain.AuditAction, resourceType, resourceID string, before, after any, now time.Time) *domain.AuditLog {
	log := &domain.AuditLog{
		ID:           idGen.Generate(),
		UserID:       domain.ActorIDFromContext(ctx),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if before != nil {
		log.BeforeState = domain.MarshalState(before)
	}
	return log
}

func offerPayload(offer *domain.Offer) map[string]any {
	payload := map[string]any{
		"offer_id":       offer.ID,
		"player_id":      offer.PlayerID,
		"player_name":    offer.PlayerName,
		"seller_club_id": offer.SellerClubID,
		"buyer_club_id":  offer.BuyerClubID,
		"amount":         offer.Amount,
		"status":         string(offer.Status),
	}
	if offer.CounterAmount != nil {
		payload["counter_amount"] = *offer.CounterAmount
		payload["counter_message"] = offer.CounterMessage
	}
	return payload
}

// errorLabel classifies err for metrics labels.
func errorLabel(err error) string {
	switch domain.Kind(err) {
	case domain.ErrValidation:
		return "validation"
	case domain.ErrPermission:
		return "permission"
	case domain.ErrInvalidState:
		return "invalid_state"
	case domain.ErrMarketClosed:
		return "market_closed"
	case domain.ErrInsufficientFunds:
		return "insufficient_funds"
	case domain.ErrNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
