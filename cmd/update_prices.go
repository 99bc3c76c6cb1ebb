package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/rmaral/carteira"
)

type updatePricesCmd struct{}

func (*updatePricesCmd) Name() string { return "update-prices" }
func (*updatePricesCmd) Synopsis() string {
	return "resolve a price for every instrument and rewrite the market data table"
}
func (*updatePricesCmd) Usage() string              { return "carteira update-prices\n" }
func (c *updatePricesCmd) SetFlags(f *flag.FlagSet) {}
func (c *updatePricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Println("no arguments expected")
		return subcommands.ExitUsageError
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

	agg := carteira.NewAggregator(a.policy, a.quoteChain()...)
	quotes := agg.Aggregate(ctx, snap.Instruments)
	if err := a.store.WriteQuotes(quotes); err != nil {
		fmt.Println("failed to write market data:", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("resolved %d prices\n", len(quotes))
	return subcommands.ExitSuccess
}
