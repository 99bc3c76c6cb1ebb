// Package cvm resolves open-end fund NAVs from the CVM "informe
// diário" monthly snapshots, keyed by fund CNPJ rather than trading
// ticker.
package cvm

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
	"github.com/rmaral/carteira/fetch"
)

const baseURL = "https://dados.cvm.gov.br/dados/FI/DOC/INF_DIARIO/DADOS"

// maxMonthsBack bounds the walk into older snapshots: the current
// month's file appears only some days into the month, and funds under
// liquidation stop reporting.
const maxMonthsBack = 4

// Source is the NAV registry tier of the price chain.
type Source struct {
	client *fetch.Client
	base   string
	today  func() date.Date
}

func New(client *fetch.Client) *Source {
	return &Source{client: client, base: baseURL, today: date.Today}
}

func (s *Source) Name() string { return "cvm" }

// Quotes resolves the latest reported NAV for every open-end fund with
// a registry CNPJ, walking monthly snapshots backwards until all funds
// are found or the walk limit is hit.
func (s *Source) Quotes(ctx context.Context, instruments []carteira.Instrument) (map[string]decimal.Decimal, error) {
	wanted := make(map[string]string) // CNPJ digits -> ticker
	for _, ins := range instruments {
		if ins.Class != carteira.OpenEndFund {
			continue
		}
		if cnpj := digits(ins.RegistryID); len(cnpj) == 14 {
			wanted[cnpj] = ins.Ticker
		}
	}
	if len(wanted) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	prices := make(map[string]decimal.Decimal)
	// first of month, so stepping back never skips a month
	today := s.today()
	month := date.New(today.Year(), today.Month(), 1)
	for i := 0; i < maxMonthsBack && len(wanted) > 0; i++ {
		navs, err := s.month(ctx, month)
		if err != nil {
			log.Printf("cvm: %d-%02d snapshot: %v", month.Year(), month.Month(), err)
		}
		for cnpj, nav := range navs {
			ticker, ok := wanted[cnpj]
			if !ok || !nav.IsPositive() {
				continue
			}
			prices[ticker] = nav
			delete(wanted, cnpj)
		}
		month = month.AddMonth(-1)
	}
	if len(prices) == 0 && len(wanted) > 0 {
		return nil, fmt.Errorf("cvm: no snapshot resolved any fund: %w", carteira.ErrUnavailable)
	}
	return prices, nil
}

// month downloads one monthly snapshot and returns the last reported
// NAV per fund CNPJ.
func (s *Source) month(ctx context.Context, month date.Date) (map[string]decimal.Decimal, error) {
	addr := fmt.Sprintf("%s/inf_diario_fi_%04d%02d.zip", s.base, month.Year(), int(month.Month()))
	body, err := s.client.GetBody(ctx, addr)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("bad zip: %w", err)
	}

	navs := make(map[string]decimal.Decimal)
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		err = scanNAVs(rc, navs)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return navs, nil
}

// scanNAVs reads one semicolon-separated report. Rows come in date
// order per fund, so later rows overwrite earlier ones and the map
// ends up holding each fund's last NAV of the month.
func scanNAVs(r io.Reader, navs map[string]decimal.Decimal) error {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("empty report: %w", err)
	}
	cnpjCol, quotaCol := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "CNPJ_FUNDO", "CNPJ_FUNDO_CLASSE":
			cnpjCol = i
		case "VL_QUOTA":
			quotaCol = i
		}
	}
	if cnpjCol < 0 || quotaCol < 0 {
		return fmt.Errorf("report has no CNPJ_FUNDO/VL_QUOTA columns")
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row) <= cnpjCol || len(row) <= quotaCol {
			continue
		}
		cnpj := digits(row[cnpjCol])
		if len(cnpj) != 14 {
			continue
		}
		if nav := carteira.ParseDecimal(row[quotaCol]); nav.IsPositive() {
			navs[cnpj] = nav
		}
	}
}

// digits strips CNPJ punctuation, "12.345.678/0001-95" to
// "12345678000195".
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
