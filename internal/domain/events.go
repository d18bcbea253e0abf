package domain

import "time"

// Event types
const (
	EventTypeOfferCreated      = "offer.created"
	EventTypeOfferCountered    = "offer.countered"
	EventTypeOfferRejected     = "offer.rejected"
	EventTypeOfferAccepted     = "offer.accepted"
	EventTypeTransferCompleted = "transfer.completed"
	EventTypeWalletPosted      = "wallet.posted"
	EventTypeMarketOpened      = "market.opened"
	EventTypeMarketClosed      = "market.closed"
)

// Aggregate types
const (
	AggregateTypeOffer    = "offer"
	AggregateTypeTransfer = "transfer"
	AggregateTypeWallet   = "wallet"
	AggregateTypeMarket   = "market"
)

// Rejection reasons carried in offer.rejected payloads.
const (
	RejectReasonDeclined          = "declined"
	RejectReasonPlayerTransferred = "player_transferred"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
