package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rmaral/carteira"
)

func testSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewWith(srv.Client())
	s.chart = srv.URL + "/chart"
	s.cookie = srv.URL + "/cookie"
	s.crumbs = srv.URL + "/crumb"
	return s
}

func chartBody(price float64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"regularMarketPrice":%v}}]}}`, price)
}

func TestSymbol(t *testing.T) {
	testCases := []struct {
		ins  carteira.Instrument
		want string
	}{
		{ins: carteira.Instrument{Ticker: "PETR4", Class: carteira.Equity, Currency: "BRL"}, want: "PETR4.SA"},
		{ins: carteira.Instrument{Ticker: "HGLG11", Class: carteira.RealEstateFund}, want: "HGLG11.SA"},
		{ins: carteira.Instrument{Ticker: "USDBRL", Class: carteira.FXPair}, want: "USDBRL=X"},
		{ins: carteira.Instrument{Ticker: "AAPL", Class: carteira.Equity, Currency: "USD"}, want: "AAPL"},
		{ins: carteira.Instrument{Ticker: "FUNDO-X", Class: carteira.OpenEndFund}, want: "FUNDO-X"},
	}
	for _, tc := range testCases {
		if got := symbol(tc.ins); got != tc.want {
			t.Errorf("symbol(%s) = %q, want %q", tc.ins.Ticker, got, tc.want)
		}
	}
}

func TestQuotes(t *testing.T) {
	s := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/crumb"):
			w.Write([]byte("abc123"))
		case strings.Contains(r.URL.Path, "PETR4.SA"):
			if r.URL.Query().Get("crumb") != "abc123" {
				t.Errorf("chart call without session crumb")
			}
			w.Write([]byte(chartBody(38.10)))
		case strings.Contains(r.URL.Path, "USDBRL=X"):
			w.Write([]byte(chartBody(5.40)))
		default:
			w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found"}}}`))
		}
	})

	prices, err := s.Quotes(context.Background(), []carteira.Instrument{
		{Ticker: "PETR4", Class: carteira.Equity, Currency: "BRL"},
		{Ticker: "USDBRL", Class: carteira.FXPair},
		{Ticker: "GHOST", Class: carteira.Equity, Currency: "USD"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := prices["PETR4"].String(); got != "38.1" {
		t.Errorf("PETR4 = %s, want 38.1", got)
	}
	if got := prices["USDBRL"].String(); got != "5.4" {
		t.Errorf("USDBRL = %s, want 5.4", got)
	}
	if _, ok := prices["GHOST"]; ok {
		t.Errorf("unknown ticker resolved instead of omitted")
	}
}

func TestEvents(t *testing.T) {
	s := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/crumb") {
			w.Write([]byte("abc123"))
			return
		}
		w.Write([]byte(`{"chart":{"result":[{
			"meta":{"regularMarketPrice":160.0},
			"events":{"dividends":{
				"1719446400":{"amount":1.10,"date":1719446400},
				"1711584000":{"amount":1.05,"date":1711584000}
			}}}]}}`))
	})

	events, err := s.Events(context.Background(), carteira.Instrument{Ticker: "HGLG11", Class: carteira.RealEstateFund})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ExDate.After(events[1].ExDate) {
		t.Errorf("events not in date order: %s, %s", events[0].ExDate, events[1].ExDate)
	}
	for _, ev := range events {
		if ev.Status != carteira.Historical {
			t.Errorf("event status = %s, want Histórico", ev.Status)
		}
		if !ev.RecordDate.IsZero() {
			t.Errorf("history feed invented a record date %s", ev.RecordDate)
		}
	}
}

func TestEventsAbsent(t *testing.T) {
	s := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/crumb") {
			w.Write([]byte("abc123"))
			return
		}
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":10}}]}}`))
	})
	_, err := s.Events(context.Background(), carteira.Instrument{Ticker: "NEWW3", Class: carteira.Equity})
	if !errors.Is(err, carteira.ErrAbsent) {
		t.Errorf("err = %v, want ErrAbsent", err)
	}
}
