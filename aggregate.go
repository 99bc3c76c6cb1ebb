package carteira

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Aggregator merges prices from a priority-ordered chain of quote
// sources into a single price map.
type Aggregator struct {
	sources []QuoteSource
	policy  Policy

	// now is swapped in tests for deterministic timestamps.
	now func() time.Time
}

// NewAggregator builds an aggregator over sources in priority order.
func NewAggregator(policy Policy, sources ...QuoteSource) *Aggregator {
	return &Aggregator{sources: sources, policy: policy, now: time.Now}
}

// Aggregate resolves a price for every instrument.
//
// Manual-override instruments keep their user-entered price and never
// reach the chain. For the rest, each tier is tried in order: all
// batches of a tier complete before any instrument falls through to
// the next tier, so the result never depends on completion order. An
// instrument no tier resolves gets the sentinel price, under which its
// quantity reads as an absolute balance.
//
// Aggregate never returns an error: every failure mode degrades to
// fallthrough or sentinel for the affected instruments only.
func (a *Aggregator) Aggregate(ctx context.Context, instruments []Instrument) map[string]Quote {
	quotes := make(map[string]Quote, len(instruments))

	var pending []Instrument
	for _, ins := range instruments {
		if ins.Manual != "" {
			quotes[ins.Ticker] = Quote{
				Ticker: ins.Ticker,
				Price:  ParseDecimal(ins.Manual),
				Source: SourceManual,
				AsOf:   a.now(),
			}
			continue
		}
		pending = append(pending, ins)
	}

	for _, src := range a.sources {
		if len(pending) == 0 {
			break
		}
		resolved := a.tier(ctx, src, pending)
		var next []Instrument
		for _, ins := range pending {
			price, ok := resolved[ins.Ticker]
			if !ok || !price.IsPositive() {
				next = append(next, ins)
				continue
			}
			quotes[ins.Ticker] = Quote{
				Ticker: ins.Ticker,
				Price:  price,
				Source: src.Name(),
				AsOf:   a.now(),
			}
		}
		pending = next
	}

	for _, ins := range pending {
		quotes[ins.Ticker] = Quote{
			Ticker: ins.Ticker,
			Price:  a.policy.Sentinel,
			Source: SourceSentinel,
			AsOf:   a.now(),
		}
	}
	return quotes
}

// tier queries one source for all pending instruments, in paced
// batches issued concurrently. Results are merged only after each
// batch completes; batches partition the instruments so merges never
// collide on a ticker.
func (a *Aggregator) tier(ctx context.Context, src QuoteSource, instruments []Instrument) map[string]decimal.Decimal {
	batches := a.batch(instruments)
	limiter := rate.NewLimiter(rate.Every(a.policy.Pacing), 1)

	var (
		mu       sync.Mutex
		resolved = make(map[string]decimal.Decimal, len(instruments))
		disabled bool
		wg       sync.WaitGroup
	)
	for _, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		mu.Lock()
		if disabled {
			mu.Unlock()
			break
		}
		mu.Unlock()

		wg.Add(1)
		go func(batch []Instrument) {
			defer wg.Done()

			var prices map[string]decimal.Decimal
			var err error
			for attempt := 0; attempt <= a.policy.Retries; attempt++ {
				// retries queue behind the same pacing as fresh batches
				if attempt > 0 {
					if limiter.Wait(ctx) != nil {
						break
					}
				}
				callCtx, cancel := context.WithTimeout(ctx, a.policy.Timeout)
				prices, err = src.Quotes(callCtx, batch)
				cancel()
				if err == nil || errors.Is(err, ErrAuth) || ctx.Err() != nil {
					break
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrAuth):
				if !disabled {
					disabled = true
					log.Printf("%s: credentials rejected, source disabled for this run", src.Name())
				}
			case err != nil:
				log.Printf("%s: batch of %d failed: %v", src.Name(), len(batch), err)
			default:
				for ticker, price := range prices {
					resolved[ticker] = price
				}
			}
		}(batch)
	}
	wg.Wait()
	return resolved
}

// batch splits instruments into slices of at most BatchSize, in a
// stable ticker order.
func (a *Aggregator) batch(instruments []Instrument) [][]Instrument {
	sorted := make([]Instrument, len(instruments))
	copy(sorted, instruments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ticker < sorted[j].Ticker })

	size := a.policy.BatchSize
	if size <= 0 {
		size = 1
	}
	var batches [][]Instrument
	for len(sorted) > size {
		batches = append(batches, sorted[:size])
		sorted = sorted[size:]
	}
	if len(sorted) > 0 {
		batches = append(batches, sorted)
	}
	return batches
}
