// Package yahoo is the generic fallback tier: it quotes whatever the
// domestic providers miss, including foreign listings and currency
// pairs, and serves a trailing dividend series for attribution when
// the structured corporate-actions feed fails.
package yahoo

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
	"github.com/rmaral/carteira/fetch"
)

const (
	chartURL  = "https://query1.finance.yahoo.com/v8/finance/chart"
	cookieURL = "https://fc.yahoo.com"
	crumbURL  = "https://query1.finance.yahoo.com/v1/test/getcrumb"
)

// Source is the fallback quote and dividend-history tier.
type Source struct {
	client *fetch.Client
	chart  string
	cookie string
	crumbs string

	once  sync.Once
	crumb string
}

// New builds the source with its own cookie session. The cookie jar is
// shared by every request so the crumb handed out at session start
// stays valid.
func New(cacheDir string) *Source {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client := fetch.New(cacheDir)
	client.HTTP().Jar = jar
	return &Source{client: client, chart: chartURL, cookie: cookieURL, crumbs: crumbURL}
}

func (s *Source) Name() string { return "yahoo" }

// session primes cookies and fetches the API crumb, once per run. A
// failed handshake is not fatal: the chart endpoint usually answers
// without a crumb.
func (s *Source) session(ctx context.Context) {
	s.once.Do(func() {
		if _, err := s.client.GetBody(ctx, s.cookie); err != nil {
			log.Printf("yahoo: cookie handshake: %v", err)
		}
		crumb, err := s.client.GetBody(ctx, s.crumbs)
		if err != nil {
			log.Printf("yahoo: crumb: %v", err)
			return
		}
		s.crumb = strings.TrimSpace(string(crumb))
	})
}

// symbol maps an instrument onto Yahoo's ticker space: B3 listings get
// the ".SA" suffix, currency pairs the "=X" suffix, foreign listings
// pass through.
func symbol(ins carteira.Instrument) string {
	switch {
	case ins.IsFXPair():
		return ins.Ticker + "=X"
	case ins.Class.Exchangeable() && (ins.Currency == "" || ins.Currency == "BRL"):
		return ins.Ticker + ".SA"
	default:
		return ins.Ticker
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *Source) get(ctx context.Context, addr string) (*chartResponse, error) {
	var resp chartResponse
	if err := s.client.GetJSON(ctx, addr, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: %v: %w", err, carteira.ErrUnavailable)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %w", resp.Chart.Error.Code, carteira.ErrAbsent)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: empty result: %w", carteira.ErrAbsent)
	}
	return &resp, nil
}

func (s *Source) chartAddr(sym, query string) string {
	addr := fmt.Sprintf("%s/%s?%s", s.chart, url.PathEscape(sym), query)
	if s.crumb != "" {
		addr += "&crumb=" + url.QueryEscape(s.crumb)
	}
	return addr
}

// Quotes resolves each instrument through the chart endpoint. Tickers
// the endpoint does not know are omitted and fall through; being the
// last tier, that usually means the sentinel.
func (s *Source) Quotes(ctx context.Context, instruments []carteira.Instrument) (map[string]decimal.Decimal, error) {
	s.session(ctx)

	prices := make(map[string]decimal.Decimal, len(instruments))
	for _, ins := range instruments {
		resp, err := s.get(ctx, s.chartAddr(symbol(ins), "interval=1d&range=1d"))
		if err != nil {
			log.Printf("%s: %v", ins.Ticker, err)
			continue
		}
		price := resp.Chart.Result[0].Meta.RegularMarketPrice
		if price > 0 {
			prices[ins.Ticker] = decimal.NewFromFloat(price)
		}
	}
	return prices, nil
}

// Events returns the trailing dividend series of one instrument. Only
// the ex-date and the per-unit amount are known; payment dates are
// estimated downstream and the status is always historical.
func (s *Source) Events(ctx context.Context, ins carteira.Instrument) ([]carteira.DividendEvent, error) {
	s.session(ctx)

	resp, err := s.get(ctx, s.chartAddr(symbol(ins), "interval=1d&range=10y&events=div"))
	if err != nil {
		return nil, err
	}
	dividends := resp.Chart.Result[0].Events.Dividends
	if len(dividends) == 0 {
		return nil, fmt.Errorf("yahoo: %s has no dividend history: %w", ins.Ticker, carteira.ErrAbsent)
	}

	var events []carteira.DividendEvent
	for _, d := range dividends {
		if d.Amount <= 0 {
			continue
		}
		events = append(events, carteira.DividendEvent{
			Ticker: ins.Ticker,
			ExDate: date.FromTime(time.Unix(d.Date, 0).UTC()),
			Rate:   decimal.NewFromFloat(d.Amount),
			Status: carteira.Historical,
			Source: s.Name(),
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ExDate.Before(events[j].ExDate) })
	return events, nil
}

// NewWith builds a source over an existing client, for tests.
func NewWith(client *http.Client) *Source {
	return &Source{client: fetch.NewWith(client), chart: chartURL, cookie: cookieURL, crumbs: crumbURL}
}
