package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeePolicy prices a withdrawal: a percentage of the requested amount plus a
// fixed charge, both in minor units. The percentage is exact decimal math
// rounded half-up to a whole minor unit; float drift is not acceptable in
// fee computation.
type FeePolicy struct {
	Percent decimal.Decimal
	Fixed   int64
	Minimum int64
}

// NewFeePolicy parses the configured percentage (e.g. "1" or "2.5").
func NewFeePolicy(percent string, fixed, minimum int64) (FeePolicy, error) {
	p, err := decimal.NewFromString(percent)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("parsing fee percent %q: %w", percent, err)
	}
	if p.IsNegative() || fixed < 0 {
		return FeePolicy{}, fmt.Errorf("fee policy must not be negative")
	}
	return FeePolicy{Percent: p, Fixed: fixed, Minimum: minimum}, nil
}

// Fees returns the total fee for a requested amount.
func (p FeePolicy) Fees(amount int64) int64 {
	pct := decimal.NewFromInt(amount).
		Mul(p.Percent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return pct.IntPart() + p.Fixed
}
