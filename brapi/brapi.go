// Package brapi resolves quotes and corporate actions for B3-listed
// instruments through the brapi.dev API.
package brapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
	"github.com/rmaral/carteira/fetch"
)

const baseURL = "https://brapi.dev/api/quote"

// Source is the primary tier for domestic exchange-traded instruments.
type Source struct {
	client *fetch.Client
	token  string
	base   string
}

// New builds the source. An empty token makes every call fail with
// ErrAuth, which disables the tier for the run.
func New(client *fetch.Client, token string) *Source {
	return &Source{client: client, token: token, base: baseURL}
}

func (s *Source) Name() string { return "brapi" }

type quoteResponse struct {
	Results []struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"results"`
}

// Quotes resolves exchange-traded tickers in one comma-joined request.
func (s *Source) Quotes(ctx context.Context, instruments []carteira.Instrument) (map[string]decimal.Decimal, error) {
	if s.token == "" {
		return nil, fmt.Errorf("brapi: no token configured: %w", carteira.ErrAuth)
	}
	var tickers []string
	for _, ins := range instruments {
		if ins.Class.Exchangeable() {
			tickers = append(tickers, ins.Ticker)
		}
	}
	if len(tickers) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	addr := fmt.Sprintf("%s/%s?token=%s", s.base,
		url.PathEscape(strings.Join(tickers, ",")), url.QueryEscape(s.token))
	var resp quoteResponse
	if err := s.client.GetJSON(ctx, addr, &resp); err != nil {
		return nil, classify(err)
	}

	prices := make(map[string]decimal.Decimal, len(resp.Results))
	for _, r := range resp.Results {
		if r.RegularMarketPrice > 0 {
			prices[r.Symbol] = decimal.NewFromFloat(r.RegularMarketPrice)
		}
	}
	return prices, nil
}

// Events returns the declared cash distributions of one ticker. The
// feed reports the record date (lastDatePrior) directly, and a payment
// date when the payer has announced one.
func (s *Source) Events(ctx context.Context, ins carteira.Instrument) ([]carteira.DividendEvent, error) {
	if s.token == "" {
		return nil, fmt.Errorf("brapi: no token configured: %w", carteira.ErrAuth)
	}
	addr := fmt.Sprintf("%s/%s?dividends=true&token=%s", s.base,
		url.PathEscape(ins.Ticker), url.QueryEscape(s.token))

	var jobj any
	if err := s.client.GetJSON(ctx, addr, &jobj); err != nil {
		return nil, classify(err)
	}
	jval, err := jsonpath.Get("$.results[0].dividendsData.cashDividends", jobj)
	if err != nil {
		return nil, fmt.Errorf("brapi: %s has no dividend data: %w", ins.Ticker, carteira.ErrAbsent)
	}
	rows, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("brapi: %s has no dividend data: %w", ins.Ticker, carteira.ErrAbsent)
	}

	var events []carteira.DividendEvent
	for _, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			continue
		}
		rate := carteira.ParseDecimal(str(fields["rate"]))
		if !rate.IsPositive() {
			continue
		}
		record, err := date.Parse(str(fields["lastDatePrior"]))
		if err != nil {
			continue
		}
		ev := carteira.DividendEvent{
			Ticker:     ins.Ticker,
			RecordDate: record,
			Rate:       rate,
			Status:     carteira.Announced,
			Source:     s.Name(),
		}
		if pay, err := date.Parse(str(fields["paymentDate"])); err == nil {
			ev.PayDate = pay
			ev.Status = carteira.Confirmed
		}
		events = append(events, ev)
	}
	return events, nil
}

// str renders a JSON scalar as the text ParseDecimal expects.
func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// classify maps transport failures onto the source error taxonomy.
func classify(err error) error {
	var status *fetch.StatusError
	if errors.As(err, &status) {
		if status.IsAuthStatus() {
			return fmt.Errorf("brapi: %v: %w", err, carteira.ErrAuth)
		}
		if status.Code == 404 {
			return fmt.Errorf("brapi: %v: %w", err, carteira.ErrAbsent)
		}
	}
	return fmt.Errorf("brapi: %v: %w", err, carteira.ErrUnavailable)
}
