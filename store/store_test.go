package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
	"github.com/shopspring/decimal"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "carteira.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadSnapshotNormalizes(t *testing.T) {
	s := open(t)
	mustExec(t, s, `INSERT INTO assets (ticker, name, class, currency) VALUES
		('PETR4', 'Petrobras PN', 'acao', 'BRL'),
		('HGLG11', '', 'fii', 'BRL')`)
	mustExec(t, s, `INSERT INTO transactions (ticker, date, type, quantity, price, currency) VALUES
		('PETR4', '2024-01-10', 'COMPRA', '100', '38,10', 'BRL'),
		('PETR4', '15/03/2024', 'venda', '30', '40,00', 'BRL'),
		('PETR4', '2024-04-01', 'TRANSFER', '1', '', ''),
		('PETR4', 'not-a-date', 'COMPRA', '1', '', '')`)

	snap, err := s.ReadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Instruments) != 2 {
		t.Fatalf("got %d instruments, want 2", len(snap.Instruments))
	}
	if got := snap.Instruments[1].Class; got != carteira.Equity {
		t.Errorf("PETR4 class = %s, want acao", got)
	}

	// two valid rows survive; the unknown type and bad date are skipped
	pos := snap.Ledger.PositionAsOf("PETR4", date.MustParse("2024-12-31"), carteira.CutoffInclusive)
	if !pos.Equal(carteira.Q(70)) {
		t.Errorf("position = %s, want 70", pos)
	}
}

func TestWriteQuotesReplaces(t *testing.T) {
	s := open(t)
	asOf := time.Unix(1724900000, 0)

	err := s.WriteQuotes(map[string]carteira.Quote{
		"PETR4": {Ticker: "PETR4", Price: decimal.NewFromFloat(38.10), Source: "brapi", AsOf: asOf},
		"STALE": {Ticker: "STALE", Price: decimal.NewFromInt(1), Source: "sentinel", AsOf: asOf},
	})
	if err != nil {
		t.Fatal(err)
	}
	// second run drops STALE entirely
	err = s.WriteQuotes(map[string]carteira.Quote{
		"PETR4": {Ticker: "PETR4", Price: decimal.NewFromFloat(39.00), Source: "brapi", AsOf: asOf},
	})
	if err != nil {
		t.Fatal(err)
	}

	quotes, err := s.Quotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes after replace, want 1", len(quotes))
	}
	if got := quotes["PETR4"].Price.String(); got != "39" {
		t.Errorf("PETR4 price = %s, want 39", got)
	}
}

func TestWriteReceiptsReplaces(t *testing.T) {
	s := open(t)
	r := carteira.DividendReceipt{
		Ticker:     "HGLG11",
		RecordDate: date.MustParse("2024-03-28"),
		PayDate:    date.MustParse("2024-04-12"),
		Quantity:   carteira.Q(10),
		Rate:       decimal.NewFromFloat(1.10),
		Amount:     carteira.M(11.0, "BRL"),
		Status:     carteira.Confirmed,
		Source:     "brapi",
	}
	if err := s.WriteReceipts([]carteira.DividendReceipt{r, r}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteReceipts([]carteira.DividendReceipt{r}); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dividends`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d dividend rows after replace, want 1", n)
	}
}

func mustExec(t *testing.T, s *Store, stmt string) {
	t.Helper()
	if _, err := s.db.Exec(stmt); err != nil {
		t.Fatal(err)
	}
}
