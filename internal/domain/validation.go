package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxNameLength    = 120
	MaxReasonLength  = 500
	MaxTriggerLength = 64
	DefaultPageSize  = 50
	MaxPageSize      = 1000
)

// ValidateName validates a club, player or rule name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return ErrInvalidName
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, MaxNameLength)
	}

	return nil
}

// ValidateAmount validates an offer, counter or ledger posting amount.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCounterMessage validates the free-text note attached to a counter-offer.
func ValidateCounterMessage(message string) error {
	if utf8.RuneCountInString(message) > MaxCounterMessageLength {
		return ErrCounterMessageTooLong
	}
	return nil
}

// ValidateReason validates the free-text reason of a ledger posting.
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)

	if reason == "" {
		return ErrMissingReason
	}

	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, MaxReasonLength)
	}

	return nil
}

// ValidateTrigger validates a rule trigger tag such as "match_won".
func ValidateTrigger(trigger string) error {
	trigger = strings.TrimSpace(trigger)

	if trigger == "" {
		return ErrInvalidTrigger
	}

	if len(trigger) > MaxTriggerLength {
		return fmt.Errorf("%w: trigger exceeds %d characters", ErrValidation, MaxTriggerLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
