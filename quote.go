package carteira

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one resolved price.
type Quote struct {
	Ticker string
	Price  decimal.Decimal

	// Source names the provider tier that resolved the price, or
	// "manual" / "sentinel" when no tier did.
	Source string

	AsOf time.Time
}

// QuoteSource is one tier of the price chain. A source answers for the
// instruments it knows and silently omits the rest from the returned
// map; omission means the instrument falls through to the next tier.
//
// An error applies to the whole call: ErrAuth disables the source for
// the run, anything else fails over just the instruments of this call.
type QuoteSource interface {
	// Name identifies the source in logs and in Quote.Source.
	Name() string

	// Quotes resolves prices for the given instruments. Returned
	// prices must be positive; zero and negative values are discarded
	// by the caller.
	Quotes(ctx context.Context, instruments []Instrument) (map[string]decimal.Decimal, error)
}

// DividendSource is one tier of the corporate-actions chain. The
// higher-priority source that knows an instrument wins outright for
// that instrument; events are never merged across tiers.
type DividendSource interface {
	Name() string

	// Events returns the known distribution events for one instrument,
	// or ErrAbsent when the source has no record of it.
	Events(ctx context.Context, instrument Instrument) ([]DividendEvent, error)
}

const (
	// SourceManual marks a price carried over from the user's own
	// entry, untouched by the chain.
	SourceManual = "manual"

	// SourceSentinel marks the price of last resort.
	SourceSentinel = "sentinel"
)
