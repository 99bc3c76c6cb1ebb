// Package tesouro resolves government bond prices from the Tesouro
// Direto daily reference file, keyed by a security descriptor built
// from the bond's type and maturity year.
package tesouro

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
	"github.com/rmaral/carteira/fetch"
)

const fileURL = "https://www.tesourotransparente.gov.br/ckan/dataset/df56aa42-484a-4a59-8184-7676580c81e3/resource/796d2059-14e9-44e3-80c9-2d9e30b405c1/download/PrecoTaxaTesouroDireto.csv"

// Source is the bond pricing tier of the price chain.
type Source struct {
	client *fetch.Client
	url    string
}

func New(client *fetch.Client) *Source {
	return &Source{client: client, url: fileURL}
}

func (s *Source) Name() string { return "tesouro" }

// descriptor identifies one bond series: the title keyword and the
// maturity year, parsed from a registry ID like "IPCA-2029" or
// "IPCA-JUROS-2035".
type descriptor struct {
	keyword  string
	semestre bool
	year     int
}

func parseDescriptor(registryID string) (descriptor, bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(registryID)), "-")
	if len(parts) < 2 {
		return descriptor{}, false
	}
	year, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || year < 1900 {
		return descriptor{}, false
	}
	d := descriptor{keyword: parts[0], year: year}
	for _, p := range parts[1 : len(parts)-1] {
		if p == "JUROS" {
			d.semestre = true
		}
	}
	return d, true
}

// matches reports whether a "Tipo Titulo" cell names this series.
func (d descriptor) matches(titulo string, maturity date.Date) bool {
	if maturity.Year() != d.year {
		return false
	}
	titulo = strings.ToUpper(titulo)
	if !strings.Contains(titulo, d.keyword) {
		return false
	}
	return strings.Contains(titulo, "JUROS") == d.semestre
}

// Quotes resolves the unit sell price of every government bond on the
// latest reference date in the file.
func (s *Source) Quotes(ctx context.Context, instruments []carteira.Instrument) (map[string]decimal.Decimal, error) {
	bonds := make(map[string]descriptor) // ticker -> series
	for _, ins := range instruments {
		if ins.Class != carteira.GovernmentBond {
			continue
		}
		if d, ok := parseDescriptor(ins.RegistryID); ok {
			bonds[ins.Ticker] = d
		}
	}
	if len(bonds) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	body, err := s.client.GetBody(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("tesouro: %v: %w", err, carteira.ErrUnavailable)
	}
	rows, latest, err := scan(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tesouro: %v: %w", err, carteira.ErrUnavailable)
	}

	prices := make(map[string]decimal.Decimal)
	for ticker, d := range bonds {
		for _, row := range rows {
			if row.base == latest && d.matches(row.titulo, row.maturity) && row.price.IsPositive() {
				prices[ticker] = row.price
				break
			}
		}
	}
	return prices, nil
}

type row struct {
	titulo   string
	maturity date.Date
	base     date.Date
	price    decimal.Decimal
}

// scan reads the semicolon-separated reference file and returns its
// rows and the most recent "Data Base" seen.
func scan(r io.Reader) ([]row, date.Date, error) {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, date.Date{}, fmt.Errorf("empty file: %w", err)
	}
	tituloCol, maturityCol, baseCol, priceCol := -1, -1, -1, -1
	for i, name := range header {
		switch normalize(name) {
		case "TIPO TITULO":
			tituloCol = i
		case "DATA VENCIMENTO":
			maturityCol = i
		case "DATA BASE":
			baseCol = i
		case "PU VENDA MANHA":
			priceCol = i
		}
	}
	if tituloCol < 0 || maturityCol < 0 || baseCol < 0 || priceCol < 0 {
		return nil, date.Date{}, fmt.Errorf("unexpected header %v", header)
	}
	need := tituloCol
	for _, c := range []int{maturityCol, baseCol, priceCol} {
		if c > need {
			need = c
		}
	}

	var rows []row
	var latest date.Date
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, date.Date{}, err
		}
		if len(rec) <= need {
			continue
		}
		maturity, err := date.Parse(rec[maturityCol])
		if err != nil {
			continue
		}
		base, err := date.Parse(rec[baseCol])
		if err != nil {
			continue
		}
		if base.After(latest) {
			latest = base
		}
		rows = append(rows, row{
			titulo:   rec[tituloCol],
			maturity: maturity,
			base:     base,
			price:    carteira.ParseDecimal(rec[priceCol]),
		})
	}
	return rows, latest, nil
}

// normalize strips the accents the file sometimes carries in headers
// ("Manhã") so column lookup is spelling-insensitive.
func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	replacer := strings.NewReplacer("Ã", "A", "Á", "A", "Â", "A", "É", "E", "Ê", "E", "Í", "I", "Ó", "O", "Õ", "O", "Ç", "C")
	return replacer.Replace(s)
}
