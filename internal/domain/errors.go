package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every concrete error below wraps exactly one of them, so callers can
// classify with errors.Is and still render the concrete message.
var (
	ErrValidation        = errors.New("validation failed")
	ErrPermission        = errors.New("permission denied")
	ErrInvalidState      = errors.New("invalid state")
	ErrMarketClosed      = errors.New("transfer market is closed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

var (
	// Validation errors
	ErrInvalidAmount         = fmt.Errorf("%w: amount must be a positive integer", ErrValidation)
	ErrInvalidDelta          = fmt.Errorf("%w: adjustment delta must not be zero", ErrValidation)
	ErrSelfDealing           = fmt.Errorf("%w: buyer and seller must be different clubs", ErrValidation)
	ErrPlayerNotListed       = fmt.Errorf("%w: player is not transfer-listed", ErrValidation)
	ErrSellerNotOwner        = fmt.Errorf("%w: seller club does not own the player", ErrValidation)
	ErrCounterMessageTooLong = fmt.Errorf("%w: counter message exceeds %d characters", ErrValidation, MaxCounterMessageLength)
	ErrCounterOutOfBand      = fmt.Errorf("%w: counter amount is outside the allowed range", ErrValidation)
	ErrMissingReason         = fmt.Errorf("%w: reason is required", ErrValidation)
	ErrMissingCategory       = fmt.Errorf("%w: category is required", ErrValidation)
	ErrInvalidTrigger        = fmt.Errorf("%w: trigger is required", ErrValidation)
	ErrInvalidName           = fmt.Errorf("%w: name is required", ErrValidation)
	ErrDuplicate             = fmt.Errorf("%w: resource already exists", ErrValidation)
	ErrMissingAccountID      = fmt.Errorf("%w: account id is required", ErrValidation)
	ErrMissingPlayerID       = fmt.Errorf("%w: player id is required", ErrValidation)
	ErrMissingBuyer          = fmt.Errorf("%w: buyer club is required", ErrValidation)
	ErrInvalidStatus         = fmt.Errorf("%w: unknown offer status", ErrValidation)
	ErrBalanceOverflow       = fmt.Errorf("%w: amount would overflow the account balance", ErrValidation)

	// Permission errors
	ErrNotSeller = fmt.Errorf("%w: not authorized to respond to this offer, only the selling club may act", ErrPermission)
	ErrNotBuyer  = fmt.Errorf("%w: not authorized to respond to this counter-offer, only the buying club may act", ErrPermission)
	ErrNotAdmin  = fmt.Errorf("%w: administrator role required", ErrPermission)
	ErrReadOnly  = fmt.Errorf("%w: viewer role cannot negotiate offers", ErrPermission)
	ErrNotParty  = fmt.Errorf("%w: club is not a party to this offer", ErrPermission)

	// State errors
	ErrOfferNotPending    = fmt.Errorf("%w: offer is not pending", ErrInvalidState)
	ErrOfferNotCountered  = fmt.Errorf("%w: offer has no open counter-offer", ErrInvalidState)
	ErrPlayerMoved        = fmt.Errorf("%w: player no longer belongs to the selling club", ErrInvalidState)
	ErrConcurrentUpdate   = fmt.Errorf("%w: resource was modified concurrently, reload and retry", ErrInvalidState)
	ErrSettlementInFlight = fmt.Errorf("%w: another settlement for this player is in progress", ErrInvalidState)
	ErrPlayerAlreadySold  = fmt.Errorf("%w: player already has an accepted offer", ErrInvalidState)

	// Not found errors
	ErrOfferNotFound    = fmt.Errorf("offer %w", ErrNotFound)
	ErrPlayerNotFound   = fmt.Errorf("player %w", ErrNotFound)
	ErrClubNotFound     = fmt.Errorf("club %w", ErrNotFound)
	ErrAccountNotFound  = fmt.Errorf("wallet account %w", ErrNotFound)
	ErrTransferNotFound = fmt.Errorf("transfer %w", ErrNotFound)
	ErrRuleNotFound     = fmt.Errorf("rule %w", ErrNotFound)
)

// Kind returns the error kind err belongs to, or nil when it is not a domain error.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrPermission,
		ErrInvalidState,
		ErrMarketClosed,
		ErrInsufficientFunds,
		ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
