package carteira

import (
	"testing"

	"github.com/rmaral/carteira/date"
)

func tx(day string, ticker string, typ TxType, qty float64) Transaction {
	return Transaction{
		Date:     date.MustParse(day),
		Ticker:   ticker,
		Type:     typ,
		Quantity: Q(qty),
	}
}

func TestPositionAsOf(t *testing.T) {
	l := NewLedger(
		tx("2024-01-10", "PETR4", Buy, 100),
		tx("2024-02-01", "PETR4", Buy, 50),
		tx("2024-03-15", "PETR4", Sell, 30),
		tx("2024-04-01", "PETR4", Split, 120), // 1:2 on 120 held
		tx("2024-05-20", "PETR4", ReverseSplit, 200),
		tx("2024-01-10", "HGLG11", Buy, 10),
	)

	testCases := []struct {
		name   string
		ticker string
		day    string
		cutoff CutoffConvention
		want   float64
	}{
		{name: "before first buy", ticker: "PETR4", day: "2024-01-09", want: 0},
		{name: "on buy inclusive", ticker: "PETR4", day: "2024-01-10", want: 100},
		{name: "on buy exclusive", ticker: "PETR4", day: "2024-01-10", cutoff: CutoffExclusive, want: 0},
		{name: "after second buy", ticker: "PETR4", day: "2024-02-01", want: 150},
		{name: "after sell", ticker: "PETR4", day: "2024-03-31", want: 120},
		{name: "after split", ticker: "PETR4", day: "2024-04-02", want: 240},
		{name: "full history", ticker: "PETR4", day: "2024-12-31", want: 40},
		{name: "other ticker isolated", ticker: "HGLG11", day: "2024-12-31", want: 10},
		{name: "unknown ticker", ticker: "XXXX3", day: "2024-12-31", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := l.PositionAsOf(tc.ticker, date.MustParse(tc.day), tc.cutoff)
			if !got.Equal(Q(tc.want)) {
				t.Errorf("PositionAsOf(%s, %s) = %s, want %v", tc.ticker, tc.day, got, tc.want)
			}
		})
	}
}

func TestPositionNeverNegative(t *testing.T) {
	// sell recorded before the matching buy made it into the ledger
	l := NewLedger(
		tx("2024-01-05", "VALE3", Sell, 80),
		tx("2024-02-01", "VALE3", Buy, 100),
	)
	if got := l.PositionAsOf("VALE3", date.MustParse("2024-01-31"), CutoffInclusive); !got.IsZero() {
		t.Errorf("oversold position = %s, want 0", got)
	}
	// the buy still nets against the early sell
	if got := l.PositionAsOf("VALE3", date.MustParse("2024-02-28"), CutoffInclusive); !got.Equal(Q(20)) {
		t.Errorf("net position = %s, want 20", got)
	}
}

func TestPositionMonotoneUnderBuys(t *testing.T) {
	l := NewLedger(
		tx("2024-01-10", "BOVA11", Buy, 5),
		tx("2024-03-10", "BOVA11", Bonus, 1),
		tx("2024-06-10", "BOVA11", Split, 6),
	)
	var prev Quantity
	for _, day := range []string{"2024-01-01", "2024-01-10", "2024-03-10", "2024-06-10", "2024-12-31"} {
		got := l.PositionAsOf("BOVA11", date.MustParse(day), CutoffInclusive)
		if got.LessThan(prev) {
			t.Fatalf("position decreased to %s at %s under buy-only ledger", got, day)
		}
		prev = got
	}
}

func TestAppendKeepsDateOrder(t *testing.T) {
	l := NewLedger()
	l.Append(tx("2024-03-01", "ITUB4", Buy, 10))
	l.Append(tx("2024-01-01", "ITUB4", Buy, 20))
	var days []string
	l.Transactions(func(t Transaction) { days = append(days, t.Date.String()) })
	if len(days) != 2 || days[0] != "2024-01-01" {
		t.Errorf("transactions out of order: %v", days)
	}
}

func TestParseTxType(t *testing.T) {
	testCases := []struct {
		in      string
		want    TxType
		wantErr bool
	}{
		{in: "COMPRA", want: Buy},
		{in: "compra", want: Buy},
		{in: " venda ", want: Sell},
		{in: "BONIFICAÇÃO", want: Bonus},
		{in: "DESDOBRAMENTO", want: Split},
		{in: "AGRUPAMENTO", want: ReverseSplit},
		{in: "TRANSFER", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := ParseTxType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTxType(%q) = %s, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseTxType(%q) = %s, %v, want %s", tc.in, got, err, tc.want)
		}
	}
}

func TestTickers(t *testing.T) {
	l := NewLedger(
		tx("2024-01-01", "VALE3", Buy, 1),
		tx("2024-01-02", "PETR4", Buy, 1),
		tx("2024-01-03", "VALE3", Buy, 1),
	)
	got := l.Tickers()
	want := []string{"PETR4", "VALE3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Tickers() = %v, want %v", got, want)
	}
}
