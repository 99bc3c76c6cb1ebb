// Package cmd implements the CLI application that reconciles the
// portfolio.
package cmd

import (
	"flag"

	"github.com/google/subcommands"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/brapi"
	"github.com/rmaral/carteira/cvm"
	"github.com/rmaral/carteira/fetch"
	"github.com/rmaral/carteira/store"
	"github.com/rmaral/carteira/tesouro"
	"github.com/rmaral/carteira/yahoo"
)

// Register the subcommands.
// A main package calls Register(), then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&updatePricesCmd{}, "reconciliation")
	c.Register(&updateDividendsCmd{}, "reconciliation")
	c.Register(&scheduleCmd{}, "reconciliation")

	c.Register(&holdingCmd{}, "reporting")
	c.Register(&receiptsCmd{}, "reporting")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configPath = flag.String("config", "carteira.yaml", "Path to the configuration file")

// app bundles what every subcommand needs: the configuration, the open
// snapshot store and the provider chains.
type app struct {
	cfg    *carteira.Config
	store  *store.Store
	policy carteira.Policy
}

func openApp() (*app, error) {
	cfg, err := carteira.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: s, policy: cfg.Policy()}, nil
}

func (a *app) close() { a.store.Close() }

// quoteChain builds the price source chain in priority order: the
// domestic bulk provider, the fund NAV registry, the bond feed, then
// the generic fallback.
func (a *app) quoteChain() []carteira.QuoteSource {
	client := fetch.New(a.cfg.Fetch.CacheDir)
	return []carteira.QuoteSource{
		brapi.New(client, a.cfg.Brapi.Token),
		cvm.New(client),
		tesouro.New(client),
		yahoo.New(a.cfg.Fetch.CacheDir),
	}
}

// dividendChain builds the corporate-actions chain: the structured
// feed first, the trailing history series as fallback.
func (a *app) dividendChain() []carteira.DividendSource {
	client := fetch.New(a.cfg.Fetch.CacheDir)
	return []carteira.DividendSource{
		brapi.New(client, a.cfg.Brapi.Token),
		yahoo.New(a.cfg.Fetch.CacheDir),
	}
}
