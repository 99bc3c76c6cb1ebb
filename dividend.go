package carteira

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/rmaral/carteira/date"
	"github.com/shopspring/decimal"
)

// DividendStatus orders events by how settled they are.
type DividendStatus int

const (
	// Confirmed events have an announced payment date.
	Confirmed DividendStatus = iota

	// Announced events are declared and forward-looking but the payer
	// has not published a payment date yet.
	Announced

	// Historical events come from a trailing distribution series; the
	// payment date is unknown and estimated.
	Historical
)

func (s DividendStatus) String() string {
	switch s {
	case Confirmed:
		return "Confirmado"
	case Announced:
		return "Futuro"
	case Historical:
		return "Histórico"
	}
	return "?"
}

// DividendEvent is one declared or past distribution, as reported by a
// single source. RecordDate may be zero when the source reports only
// the ex-date.
type DividendEvent struct {
	Ticker     string
	ExDate     date.Date
	RecordDate date.Date
	PayDate    date.Date
	Rate       decimal.Decimal
	Status     DividendStatus
	Source     string
}

// DividendReceipt is the cash a position was entitled to on one record
// date. Amount is Quantity times the per-unit rate.
type DividendReceipt struct {
	Ticker     string
	RecordDate date.Date
	PayDate    date.Date

	// PayEstimated is set when PayDate was derived from the record
	// date rather than announced by the payer.
	PayEstimated bool

	Quantity Quantity
	Rate     decimal.Decimal
	Amount   Money
	Status   DividendStatus
	Source   string
}

// Attribution matches distribution events against the ledger to find
// the receipts the portfolio was entitled to.
type Attribution struct {
	ledger  *Ledger
	policy  Policy
	sources []DividendSource
	today   func() date.Date
}

// NewAttribution builds an attribution engine over dividend sources in
// priority order.
func NewAttribution(ledger *Ledger, policy Policy, sources ...DividendSource) *Attribution {
	return &Attribution{ledger: ledger, policy: policy, sources: sources, today: date.Today}
}

// Receipts computes the entitled receipts for every instrument.
//
// For each instrument the first source that knows it wins outright;
// events are never merged across sources. Entitlement uses the held
// quantity on the record date; when the source reports only an
// ex-date, the record date is taken as the day before it. Events the
// position was not entitled to produce no receipt at all.
//
// Receipts never returns an error: a failing source or instrument
// degrades to no events for it.
func (a *Attribution) Receipts(ctx context.Context, instruments []Instrument) []DividendReceipt {
	var receipts []DividendReceipt
	authFailed := make(map[string]bool)

	for _, ins := range instruments {
		if !ins.Class.PaysDividends() {
			continue
		}
		events := a.events(ctx, ins, authFailed)
		for _, ev := range a.coalesce(events) {
			if r, ok := a.receipt(ins, ev); ok {
				receipts = append(receipts, r)
			}
		}
	}

	sort.SliceStable(receipts, func(i, j int) bool {
		if receipts[i].Status != receipts[j].Status {
			return receipts[i].Status < receipts[j].Status
		}
		return receipts[i].RecordDate.Before(receipts[j].RecordDate)
	})
	return receipts
}

// events returns the winning source's events for one instrument.
func (a *Attribution) events(ctx context.Context, ins Instrument, authFailed map[string]bool) []DividendEvent {
	for _, src := range a.sources {
		if authFailed[src.Name()] {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, a.policy.Timeout)
		events, err := src.Events(callCtx, ins)
		cancel()
		switch {
		case err == nil && len(events) > 0:
			return events
		case errors.Is(err, ErrAuth):
			authFailed[src.Name()] = true
			log.Printf("%s: credentials rejected, source disabled for this run", src.Name())
		case err != nil && !errors.Is(err, ErrAbsent):
			log.Printf("%s: %s: %v", src.Name(), ins.Ticker, err)
		}
	}
	return nil
}

// coalesce merges events that share a record date by summing their
// rates. Payers that split one distribution into ordinary dividends
// plus interest on capital report them as separate rows for the same
// entitlement date.
func (a *Attribution) coalesce(events []DividendEvent) []DividendEvent {
	byDate := make(map[date.Date]*DividendEvent)
	var order []date.Date
	for _, ev := range events {
		record := a.recordDate(ev)
		merged, ok := byDate[record]
		if !ok {
			ev.RecordDate = record
			byDate[record] = &ev
			order = append(order, record)
			continue
		}
		merged.Rate = merged.Rate.Add(ev.Rate)
		// keep the earliest announced payment date
		if !ev.PayDate.IsZero() && (merged.PayDate.IsZero() || ev.PayDate.Before(merged.PayDate)) {
			merged.PayDate = ev.PayDate
		}
	}
	out := make([]DividendEvent, 0, len(order))
	for _, d := range order {
		out = append(out, *byDate[d])
	}
	return out
}

// recordDate resolves the entitlement date of an event: the reported
// record date when the source gives one, otherwise the day before the
// ex-date.
func (a *Attribution) recordDate(ev DividendEvent) date.Date {
	if !ev.RecordDate.IsZero() {
		return ev.RecordDate
	}
	return ev.ExDate.Add(-1)
}

// receipt turns one event into a receipt, or reports that the
// position held nothing on the record date.
func (a *Attribution) receipt(ins Instrument, ev DividendEvent) (DividendReceipt, bool) {
	qty := a.ledger.PositionAsOf(ins.Ticker, ev.RecordDate, a.policy.Cutoff)
	if !qty.IsPositive() {
		return DividendReceipt{}, false
	}

	r := DividendReceipt{
		Ticker:     ins.Ticker,
		RecordDate: ev.RecordDate,
		PayDate:    ev.PayDate,
		Quantity:   qty,
		Rate:       ev.Rate,
		Amount:     M(ev.Rate, ins.Currency).Mul(qty),
		Status:     ev.Status,
		Source:     ev.Source,
	}
	if r.PayDate.IsZero() {
		r.PayDate = ev.RecordDate.Add(a.policy.payOffset(ins.Class))
		r.PayEstimated = true
		if r.Status == Confirmed {
			r.Status = Announced
		}
	}
	// a declared event with no payment date is only "announced" while
	// it is still forward-looking
	if r.Status == Announced && r.PayDate.Before(a.today()) {
		r.Status = Historical
	}
	return r, true
}
