package carteira

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeSource answers from a fixed price table and can be told to fail,
// permanently or for the first few calls, or to hang until cancelled.
type fakeSource struct {
	name     string
	prices   map[string]float64
	err      error
	failures int
	stall    bool

	mu    sync.Mutex
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Quotes(ctx context.Context, instruments []Instrument) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	s.calls++
	transient := s.failures > 0
	if transient {
		s.failures--
	}
	s.mu.Unlock()
	if s.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if transient {
		return nil, ErrUnavailable
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]decimal.Decimal)
	for _, ins := range instruments {
		if p, ok := s.prices[ins.Ticker]; ok {
			out[ins.Ticker] = decimal.NewFromFloat(p)
		}
	}
	return out, nil
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Pacing = 0
	p.Timeout = time.Second
	return p
}

func prices(quotes map[string]Quote) map[string]string {
	out := make(map[string]string, len(quotes))
	for ticker, q := range quotes {
		out[ticker] = q.Price.String()
	}
	return out
}

func TestAggregatePriorityWins(t *testing.T) {
	primary := &fakeSource{name: "primary", prices: map[string]float64{"PETR4": 38.10}}
	secondary := &fakeSource{name: "secondary", prices: map[string]float64{"PETR4": 12.00}}
	a := NewAggregator(testPolicy(), primary, secondary)

	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "PETR4", Class: Equity}})
	q := quotes["PETR4"]
	if q.Price.String() != "38.1" || q.Source != "primary" {
		t.Errorf("got %s from %s, want 38.1 from primary", q.Price, q.Source)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary was queried %d times for a resolved instrument", secondary.calls)
	}
}

func TestAggregateFallbackChain(t *testing.T) {
	primary := &fakeSource{name: "primary", err: ErrUnavailable}
	secondary := &fakeSource{name: "secondary", prices: map[string]float64{"VALE3": 61.55}}
	a := NewAggregator(testPolicy(), primary, secondary)

	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "VALE3", Class: Equity}})
	q := quotes["VALE3"]
	if q.Price.String() != "61.55" || q.Source != "secondary" {
		t.Errorf("got %s from %s, want 61.55 from secondary", q.Price, q.Source)
	}
}

func TestAggregatePartialTier(t *testing.T) {
	// primary knows one of the two tickers; the other falls through
	primary := &fakeSource{name: "primary", prices: map[string]float64{"ITUB4": 33.02}}
	secondary := &fakeSource{name: "secondary", prices: map[string]float64{"KNRI11": 148.90}}
	a := NewAggregator(testPolicy(), primary, secondary)

	quotes := a.Aggregate(context.Background(), []Instrument{
		{Ticker: "ITUB4", Class: Equity},
		{Ticker: "KNRI11", Class: RealEstateFund},
	})
	if got := quotes["ITUB4"]; got.Source != "primary" {
		t.Errorf("ITUB4 resolved by %s, want primary", got.Source)
	}
	if got := quotes["KNRI11"]; got.Source != "secondary" {
		t.Errorf("KNRI11 resolved by %s, want secondary", got.Source)
	}
}

func TestAggregateManualOverride(t *testing.T) {
	primary := &fakeSource{name: "primary", prices: map[string]float64{"CDB-XP": 9999}}
	a := NewAggregator(testPolicy(), primary)

	quotes := a.Aggregate(context.Background(), []Instrument{
		{Ticker: "CDB-XP", Class: TermDeposit, Manual: "1.234,56"},
	})
	q := quotes["CDB-XP"]
	if q.Source != SourceManual || q.Price.String() != "1234.56" {
		t.Errorf("manual instrument got %s from %s, want 1234.56 from manual", q.Price, q.Source)
	}
	if primary.calls != 0 {
		t.Errorf("chain was queried for a manual-override instrument")
	}
}

func TestAggregateSentinel(t *testing.T) {
	empty := &fakeSource{name: "primary", prices: map[string]float64{}}
	a := NewAggregator(testPolicy(), empty)

	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "POUPANCA", Class: TermDeposit}})
	q := quotes["POUPANCA"]
	if q.Source != SourceSentinel || q.Price.String() != "1" {
		t.Errorf("unresolved instrument got %s from %s, want sentinel 1", q.Price, q.Source)
	}
}

func TestAggregateZeroPriceFallsThrough(t *testing.T) {
	primary := &fakeSource{name: "primary", prices: map[string]float64{"MGLU3": 0}}
	secondary := &fakeSource{name: "secondary", prices: map[string]float64{"MGLU3": 2.15}}
	a := NewAggregator(testPolicy(), primary, secondary)

	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "MGLU3", Class: Equity}})
	if q := quotes["MGLU3"]; q.Source != "secondary" {
		t.Errorf("zero price accepted from %s, want fallthrough to secondary", q.Source)
	}
}

func TestAggregateAuthDisablesTier(t *testing.T) {
	p := testPolicy()
	p.BatchSize = 1
	locked := &fakeSource{name: "locked", err: ErrAuth}
	open := &fakeSource{name: "open", prices: map[string]float64{"A": 1.5, "B": 2.5, "C": 3.5}}
	a := NewAggregator(p, locked, open)

	quotes := a.Aggregate(context.Background(), []Instrument{
		{Ticker: "A"}, {Ticker: "B"}, {Ticker: "C"},
	})
	for _, ticker := range []string{"A", "B", "C"} {
		if q := quotes[ticker]; q.Source != "open" {
			t.Errorf("%s resolved by %s, want open", ticker, q.Source)
		}
	}
}

func TestAggregateTimeoutFallsThrough(t *testing.T) {
	p := testPolicy()
	p.Timeout = 50 * time.Millisecond
	hung := &fakeSource{name: "hung", stall: true}
	secondary := &fakeSource{name: "secondary", prices: map[string]float64{"BBAS3": 27.40}}
	a := NewAggregator(p, hung, secondary)

	start := time.Now()
	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "BBAS3", Class: Equity}})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v with a hung primary, want a prompt timeout", elapsed)
	}
	q := quotes["BBAS3"]
	if q.Source != "secondary" || q.Price.String() != "27.4" {
		t.Errorf("got %s from %s, want 27.4 from secondary", q.Price, q.Source)
	}
}

func TestAggregateRetriesTransientFailure(t *testing.T) {
	flaky := &fakeSource{name: "primary", prices: map[string]float64{"WEGE3": 52.30}, failures: 1}
	a := NewAggregator(testPolicy(), flaky)

	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "WEGE3", Class: Equity}})
	q := quotes["WEGE3"]
	if q.Source != "primary" || q.Price.String() != "52.3" {
		t.Errorf("got %s from %s, want 52.3 from primary after retry", q.Price, q.Source)
	}
	if flaky.calls != 2 {
		t.Errorf("source called %d times, want 2", flaky.calls)
	}
}

func TestAggregateRetryIsPaced(t *testing.T) {
	p := testPolicy()
	p.Pacing = 80 * time.Millisecond
	flaky := &fakeSource{name: "primary", prices: map[string]float64{"WEGE3": 52.30}, failures: 1}
	a := NewAggregator(p, flaky)

	start := time.Now()
	quotes := a.Aggregate(context.Background(), []Instrument{{Ticker: "WEGE3", Class: Equity}})
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("retry fired after %v, want at least one pacing interval", elapsed)
	}
	if q := quotes["WEGE3"]; q.Source != "primary" || q.Price.String() != "52.3" {
		t.Errorf("got %s from %s, want 52.3 from primary after retry", q.Price, q.Source)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	src := &fakeSource{name: "primary", prices: map[string]float64{"PETR4": 38.10, "VALE3": 61.55}}
	a := NewAggregator(testPolicy(), src)
	instruments := []Instrument{
		{Ticker: "PETR4", Class: Equity},
		{Ticker: "VALE3", Class: Equity},
		{Ticker: "USDBRL", Class: FXPair},
	}

	first := prices(a.Aggregate(context.Background(), instruments))
	second := prices(a.Aggregate(context.Background(), instruments))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs diverged: %v vs %v", first, second)
	}
}

func TestBatchPartition(t *testing.T) {
	p := testPolicy()
	p.BatchSize = 2
	a := NewAggregator(p)
	instruments := []Instrument{
		{Ticker: "E"}, {Ticker: "A"}, {Ticker: "C"}, {Ticker: "B"}, {Ticker: "D"},
	}
	batches := a.batch(instruments)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	var flat []string
	for _, b := range batches {
		for _, ins := range b {
			flat = append(flat, ins.Ticker)
		}
	}
	want := []string{"A", "B", "C", "D", "E"}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("batch order %v, want %v", flat, want)
	}
}
