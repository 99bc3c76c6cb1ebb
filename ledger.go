package carteira

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rmaral/carteira/date"
)

// TxType is the movement vocabulary of the ledger, as recorded by the
// broker statements.
type TxType string

const (
	Buy          TxType = "COMPRA"
	Sell         TxType = "VENDA"
	Bonus        TxType = "BONIFICACAO"
	Split        TxType = "DESDOBRAMENTO"
	ReverseSplit TxType = "AGRUPAMENTO"
)

// ParseTxType normalizes a ledger movement label.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case Buy, Sell, Bonus, Split, ReverseSplit:
		return t, nil
	}
	// accented spellings from hand-edited sheets
	switch string(t) {
	case "BONIFICAÇÃO":
		return Bonus, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Sign returns +1 for movements that add units and -1 for movements
// that remove them.
func (t TxType) Sign() int {
	switch t {
	case Sell, ReverseSplit:
		return -1
	}
	return 1
}

// Transaction is one immutable ledger row. Quantity is always the
// absolute number of units moved; the type carries the direction.
type Transaction struct {
	Date     date.Date
	Ticker   string
	Type     TxType
	Quantity Quantity

	// Price is the unit price paid or received, in Currency.
	Price Money

	// Cost is brokerage and fees, in Currency.
	Cost Money

	// FXRate converts Currency into the reporting currency on the
	// transaction date. Zero when the transaction is already in the
	// reporting currency.
	FXRate Quantity
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s x%s", t.Date, t.Type, t.Ticker, t.Quantity)
}

// Ledger is an append-only list of transactions kept sorted by date.
type Ledger struct {
	transactions []Transaction
}

// NewLedger builds a sorted ledger from rows in any order.
func NewLedger(transactions ...Transaction) *Ledger {
	l := &Ledger{}
	l.Append(transactions...)
	return l
}

// Append adds transactions and restores date order. The sort is stable
// so same-day rows keep their statement order.
func (l *Ledger) Append(transactions ...Transaction) {
	l.transactions = append(l.transactions, transactions...)
	l.stableSort()
}

func (l *Ledger) stableSort() {
	sort.SliceStable(l.transactions, func(i, j int) bool {
		return l.transactions[i].Date.Before(l.transactions[j].Date)
	})
}

// Transactions ranges over the ledger in date order.
func (l *Ledger) Transactions(f func(t Transaction)) {
	for _, t := range l.transactions {
		f(t)
	}
}

// Tickers returns the distinct tickers that appear in the ledger,
// sorted.
func (l *Ledger) Tickers() []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, t := range l.transactions {
		if !seen[t.Ticker] {
			seen[t.Ticker] = true
			tickers = append(tickers, t.Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}

// PositionAsOf replays the ledger and returns the quantity of ticker
// held at the end of day, under the given cutoff convention. The
// result is floored at zero: a ledger that oversells (missing rows,
// out-of-order statements) yields an empty position, never a short.
func (l *Ledger) PositionAsOf(ticker string, day date.Date, cutoff CutoffConvention) Quantity {
	var pos Quantity
	for _, t := range l.transactions {
		if t.Ticker != ticker {
			continue
		}
		if t.Date.After(day) {
			break
		}
		if cutoff == CutoffExclusive && t.Date.Compare(day) == 0 {
			break
		}
		if t.Type.Sign() < 0 {
			pos = pos.Sub(t.Quantity)
		} else {
			pos = pos.Add(t.Quantity)
		}
	}
	return pos.Floor()
}

// Positions returns every non-zero position held at the end of day.
func (l *Ledger) Positions(day date.Date, cutoff CutoffConvention) map[string]Quantity {
	positions := make(map[string]Quantity)
	for _, ticker := range l.Tickers() {
		if q := l.PositionAsOf(ticker, day, cutoff); !q.IsZero() {
			positions[ticker] = q
		}
	}
	return positions
}
