package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CounterPolicy bounds counter-offer amounts relative to the original amount.
// A zero ratio disables that side of the band.
type CounterPolicy struct {
	MinRatio decimal.Decimal
	MaxRatio decimal.Decimal
}

// NewCounterPolicy parses ratios such as "1.1" and "2". Empty strings disable a bound.
func NewCounterPolicy(minRatio, maxRatio string) (CounterPolicy, error) {
	var policy CounterPolicy

	if minRatio != "" {
		d, err := decimal.NewFromString(minRatio)
		if err != nil {
			return CounterPolicy{}, fmt.Errorf("parse counter min ratio: %w", err)
		}
		policy.MinRatio = d
	}

	if maxRatio != "" {
		d, err := decimal.NewFromString(maxRatio)
		if err != nil {
			return CounterPolicy{}, fmt.Errorf("parse counter max ratio: %w", err)
		}
		policy.MaxRatio = d
	}

	if policy.MinRatio.IsNegative() || policy.MaxRatio.IsNegative() {
		return CounterPolicy{}, fmt.Errorf("counter ratios must not be negative")
	}

	if policy.MinRatio.IsPositive() && policy.MaxRatio.IsPositive() && policy.MinRatio.GreaterThan(policy.MaxRatio) {
		return CounterPolicy{}, fmt.Errorf("counter min ratio %s exceeds max ratio %s", policy.MinRatio, policy.MaxRatio)
	}

	return policy, nil
}

// Enabled reports whether any bound is configured.
func (p CounterPolicy) Enabled() bool {
	return p.MinRatio.IsPositive() || p.MaxRatio.IsPositive()
}

// Bounds returns the inclusive counter range for original. Zero means unbounded.
// The lower bound rounds up and the upper bound rounds down, so both stay inside the band.
func (p CounterPolicy) Bounds(original int64) (lower, upper int64) {
	amount := decimal.NewFromInt(original)
	if p.MinRatio.IsPositive() {
		lower = amount.Mul(p.MinRatio).Ceil().IntPart()
	}
	if p.MaxRatio.IsPositive() {
		upper = amount.Mul(p.MaxRatio).Floor().IntPart()
	}
	return lower, upper
}

// Check validates counter against original.
func (p CounterPolicy) Check(original, counter int64) error {
	if !p.Enabled() {
		return nil
	}

	lower, upper := p.Bounds(original)
	if lower > 0 && counter < lower {
		return fmt.Errorf("%w: minimum is %d", ErrCounterOutOfBand, lower)
	}
	if upper > 0 && counter > upper {
		return fmt.Errorf("%w: maximum is %d", ErrCounterOutOfBand, upper)
	}
	return nil
}
