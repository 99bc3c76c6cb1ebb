package carteira

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Converter converts monetary amounts into a base currency using FX
// quotes resolved by the aggregation chain. Pairs are ordinary
// instruments: the quote for ticker "USDBRL" is the BRL price of one
// USD.
type Converter struct {
	base   string
	quotes map[string]Quote
}

// NewConverter builds a converter into base over an aggregated quote
// map.
func NewConverter(base string, quotes map[string]Quote) *Converter {
	return &Converter{base: base, quotes: quotes}
}

// Base returns the reporting currency.
func (c *Converter) Base() string { return c.base }

// Rate returns the latest rate from one currency into the base, or
// ErrAbsent when no pair quote was resolved.
func (c *Converter) Rate(from string) (decimal.Decimal, error) {
	if from == c.base {
		return decimal.NewFromInt(1), nil
	}
	q, ok := c.quotes[FXTicker(from, c.base)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s quote: %w", FXTicker(from, c.base), ErrAbsent)
	}
	return q.Price, nil
}

// Convert re-denominates an amount into the base currency. An amount
// already in the base currency passes through unchanged.
func (c *Converter) Convert(amount Money) (Money, error) {
	if amount.Currency() == c.base || amount.Currency() == "" {
		return amount, nil
	}
	rate, err := c.Rate(amount.Currency())
	if err != nil {
		return Money{}, err
	}
	return M(amount.Decimal().Mul(rate), c.base), nil
}
