// Package store is the snapshot boundary of a reconciliation run: it
// reads the instrument registry and the transaction ledger once, and
// writes the recomputed market data and dividend tables wholesale.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
)

// Store persists the portfolio in a SQLite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			ticker      TEXT PRIMARY KEY,
			name        TEXT,
			class       TEXT NOT NULL,
			currency    TEXT NOT NULL DEFAULT 'BRL',
			registry_id TEXT,
			manual      TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker   TEXT NOT NULL,
			date     TEXT NOT NULL,
			type     TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price    TEXT,
			cost     TEXT,
			currency TEXT,
			fx_rate  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_ticker_date ON transactions(ticker, date)`,

		`CREATE TABLE IF NOT EXISTS market_data (
			ticker TEXT PRIMARY KEY,
			price  TEXT NOT NULL,
			source TEXT NOT NULL,
			as_of  INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS dividends (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker        TEXT NOT NULL,
			record_date   TEXT NOT NULL,
			pay_date      TEXT,
			pay_estimated INTEGER NOT NULL DEFAULT 0,
			quantity      TEXT NOT NULL,
			rate          TEXT NOT NULL,
			amount        TEXT NOT NULL,
			currency      TEXT NOT NULL DEFAULT 'BRL',
			status        TEXT NOT NULL,
			source        TEXT NOT NULL,
			discovered    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_div_ticker_date ON dividends(ticker, record_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Snapshot is the read-only input of one run.
type Snapshot struct {
	Instruments []carteira.Instrument
	Ledger      *carteira.Ledger
}

// ReadSnapshot loads the instrument registry and the full transaction
// ledger. Malformed rows are normalized on the way in: unparseable
// numbers read as zero, rows with an unknown transaction type or date
// are skipped with a log line.
func (s *Store) ReadSnapshot() (*Snapshot, error) {
	snap := &Snapshot{Ledger: carteira.NewLedger()}

	rows, err := s.db.Query(`SELECT ticker, COALESCE(name,''), class,
		currency, COALESCE(registry_id,''), COALESCE(manual,'')
		FROM assets ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("read assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ins carteira.Instrument
		var class string
		if err := rows.Scan(&ins.Ticker, &ins.Name, &class, &ins.Currency, &ins.RegistryID, &ins.Manual); err != nil {
			return nil, err
		}
		ins.Class = carteira.ParseAssetClass(class)
		snap.Instruments = append(snap.Instruments, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	txRows, err := s.db.Query(`SELECT ticker, date, type, quantity,
		COALESCE(price,''), COALESCE(cost,''), COALESCE(currency,''), COALESCE(fx_rate,'')
		FROM transactions ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	defer txRows.Close()
	for txRows.Next() {
		var ticker, day, typ, qty, price, cost, currency, fx string
		if err := txRows.Scan(&ticker, &day, &typ, &qty, &price, &cost, &currency, &fx); err != nil {
			return nil, err
		}
		t, err := normalize(ticker, day, typ, qty, price, cost, currency, fx)
		if err != nil {
			log.Printf("skipping transaction %s %s: %v", ticker, day, err)
			continue
		}
		snap.Ledger.Append(t)
	}
	return snap, txRows.Err()
}

// normalize turns one raw row into a typed transaction.
func normalize(ticker, day, typ, qty, price, cost, currency, fx string) (carteira.Transaction, error) {
	txType, err := carteira.ParseTxType(typ)
	if err != nil {
		return carteira.Transaction{}, err
	}
	d, err := date.Parse(day)
	if err != nil {
		return carteira.Transaction{}, fmt.Errorf("bad date %q: %w", day, err)
	}
	return carteira.Transaction{
		Ticker:   ticker,
		Date:     d,
		Type:     txType,
		Quantity: carteira.Q(carteira.ParseDecimal(qty)),
		Price:    carteira.M(carteira.ParseDecimal(price), currency),
		Cost:     carteira.M(carteira.ParseDecimal(cost), currency),
		FXRate:   carteira.Q(carteira.ParseDecimal(fx)),
	}, nil
}

// WriteQuotes replaces the market data table with the outcome of one
// aggregation run, in a single transaction.
func (s *Store) WriteQuotes(quotes map[string]carteira.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM market_data`); err != nil {
		return err
	}
	for _, q := range quotes {
		_, err := tx.Exec(`INSERT INTO market_data (ticker, price, source, as_of) VALUES (?,?,?,?)`,
			q.Ticker, q.Price.String(), q.Source, q.AsOf.Unix())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// WriteReceipts replaces the dividend table with the outcome of one
// attribution run, in a single transaction.
func (s *Store) WriteReceipts(receipts []carteira.DividendReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM dividends`); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, r := range receipts {
		estimated := 0
		if r.PayEstimated {
			estimated = 1
		}
		_, err := tx.Exec(`INSERT INTO dividends
			(ticker, record_date, pay_date, pay_estimated, quantity, rate, amount, currency, status, source, discovered)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			r.Ticker, r.RecordDate.String(), r.PayDate.String(), estimated,
			r.Quantity.String(), r.Rate.String(), r.Amount.Decimal().String(),
			r.Amount.Currency(), r.Status.String(), r.Source, now,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Receipts reads the dividend table back, in stored order.
func (s *Store) Receipts() ([]carteira.DividendReceipt, error) {
	rows, err := s.db.Query(`SELECT ticker, record_date, pay_date, pay_estimated,
		quantity, rate, amount, currency, status, source FROM dividends ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []carteira.DividendReceipt
	for rows.Next() {
		var r carteira.DividendReceipt
		var record, pay, qty, rate, amount, currency, status string
		var estimated int
		if err := rows.Scan(&r.Ticker, &record, &pay, &estimated, &qty, &rate, &amount, &currency, &status, &r.Source); err != nil {
			return nil, err
		}
		if r.RecordDate, err = date.Parse(record); err != nil {
			return nil, fmt.Errorf("bad record date %q: %w", record, err)
		}
		if pay != "" {
			if r.PayDate, err = date.Parse(pay); err != nil {
				return nil, fmt.Errorf("bad pay date %q: %w", pay, err)
			}
		}
		r.PayEstimated = estimated != 0
		r.Quantity = carteira.Q(carteira.ParseDecimal(qty))
		r.Rate = carteira.ParseDecimal(rate)
		r.Amount = carteira.M(carteira.ParseDecimal(amount), currency)
		r.Status = parseStatus(status)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func parseStatus(s string) carteira.DividendStatus {
	switch s {
	case carteira.Confirmed.String():
		return carteira.Confirmed
	case carteira.Announced.String():
		return carteira.Announced
	default:
		return carteira.Historical
	}
}

// Quotes reads the market data table back, keyed by ticker.
func (s *Store) Quotes() (map[string]carteira.Quote, error) {
	rows, err := s.db.Query(`SELECT ticker, price, source, as_of FROM market_data`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make(map[string]carteira.Quote)
	for rows.Next() {
		var q carteira.Quote
		var price string
		var asOf int64
		if err := rows.Scan(&q.Ticker, &price, &q.Source, &asOf); err != nil {
			return nil, err
		}
		q.Price = carteira.ParseDecimal(price)
		q.AsOf = time.Unix(asOf, 0)
		quotes[q.Ticker] = q
	}
	return quotes, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
