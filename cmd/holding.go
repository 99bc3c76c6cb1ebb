package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/rmaral/carteira"
	"github.com/rmaral/carteira/date"
)

type holdingCmd struct {
	asOf string
}

func (*holdingCmd) Name() string { return "holding" }
func (*holdingCmd) Synopsis() string {
	return "print positions and their valuation as of a date"
}
func (*holdingCmd) Usage() string {
	return "carteira holding [-as-of 2024-12-31]\n"
}
func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "cutoff date, defaults to today")
}
func (c *holdingCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Println("no arguments expected")
		return subcommands.ExitUsageError
	}

	day := date.Today()
	if c.asOf != "" {
		var err error
		if day, err = date.Parse(c.asOf); err != nil {
			fmt.Println(err)
			return subcommands.ExitUsageError
		}
	}

	a, err := openApp()
	if err != nil {
		fmt.Println(err)
		return subcommands.ExitFailure
	}
	defer a.close()

	snap, err := a.store.ReadSnapshot()
	if err != nil {
		fmt.Println("failed to read snapshot:", err)
		return subcommands.ExitFailure
	}
	quotes, err := a.store.Quotes()
	if err != nil {
		fmt.Println("failed to read market data:", err)
		return subcommands.ExitFailure
	}
	converter := carteira.NewConverter(a.cfg.BaseCurrency, quotes)

	currencies := make(map[string]string)
	for _, ins := range snap.Instruments {
		currencies[ins.Ticker] = ins.Currency
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TICKER\tQUANTITY\tPRICE\tVALUE (%s)\tSOURCE\n", a.cfg.BaseCurrency)
	total := carteira.M(0, a.cfg.BaseCurrency)
	for _, ticker := range snap.Ledger.Tickers() {
		qty := snap.Ledger.PositionAsOf(ticker, day, a.policy.Cutoff)
		if qty.IsZero() {
			continue
		}
		q, ok := quotes[ticker]
		if !ok {
			q = carteira.Quote{Ticker: ticker, Price: a.policy.Sentinel, Source: carteira.SourceSentinel}
		}
		value, err := converter.Convert(carteira.M(q.Price, currencies[ticker]).Mul(qty))
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t?\t%s\n", ticker, qty, q.Price, q.Source)
			continue
		}
		total = total.Add(value)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ticker, qty, q.Price, value, q.Source)
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\t\n", total)
	w.Flush()
	return subcommands.ExitSuccess
}
