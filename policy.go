package carteira

import (
	"time"

	"github.com/shopspring/decimal"
)

// CutoffConvention decides whether a transaction dated exactly on the
// cutoff day counts toward the position on that day.
type CutoffConvention int

const (
	// CutoffInclusive counts same-day transactions. This matches
	// brokers that settle entitlements at end of record day.
	CutoffInclusive CutoffConvention = iota

	// CutoffExclusive counts only transactions strictly before the
	// cutoff day.
	CutoffExclusive
)

// Policy bundles the tunable conventions of a reconciliation run.
// The zero value is not usable; start from DefaultPolicy.
type Policy struct {
	// Cutoff applies to every position-as-of computation.
	Cutoff CutoffConvention

	// Sentinel is the price of last resort, assigned when no source in
	// the chain resolves an instrument. Non-exchangeable balances
	// (term deposits, cash) are carried at this price by construction.
	Sentinel decimal.Decimal

	// BatchSize caps how many tickers go into one bulk quote request.
	BatchSize int

	// Pacing is the minimum interval between consecutive calls to the
	// same source.
	Pacing time.Duration

	// Timeout bounds each individual source call.
	Timeout time.Duration

	// Retries is how many extra attempts a failed batch gets before
	// its instruments fall through to the next tier.
	Retries int

	// PayDateOffset estimates a payment date from an ex/record date
	// when the source announces none.
	PayDateOffset map[AssetClass]int
}

// DefaultPolicy returns the conventions used by the command line tools.
func DefaultPolicy() Policy {
	return Policy{
		Cutoff:    CutoffInclusive,
		Sentinel:  decimal.NewFromInt(1),
		BatchSize: 20,
		Pacing:    500 * time.Millisecond,
		Timeout:   30 * time.Second,
		Retries:   1,
		PayDateOffset: map[AssetClass]int{
			RealEstateFund: 10,
		},
	}
}

// payOffset returns the estimated days between record date and payment
// for a class, defaulting to 15.
func (p Policy) payOffset(c AssetClass) int {
	if d, ok := p.PayDateOffset[c]; ok {
		return d
	}
	return 15
}
