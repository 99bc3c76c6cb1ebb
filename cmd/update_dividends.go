package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/rmaral/carteira"
)

type updateDividendsCmd struct{}

func (*updateDividendsCmd) Name() string { return "update-dividends" }
func (*updateDividendsCmd) Synopsis() string {
	return "recompute entitled dividend receipts and rewrite the dividend table"
}
func (*updateDividendsCmd) Usage() string              { return "carteira update-dividends\n" }
func (c *updateDividendsCmd) SetFlags(f *flag.FlagSet) {}
func (c *updateDividendsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	attribution := carteira.NewAttribution(snap.Ledger, a.policy, a.dividendChain()...)
	receipts := attribution.Receipts(ctx, snap.Instruments)
	if err := a.store.WriteReceipts(receipts); err != nil {
		fmt.Println("failed to write dividends:", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("attributed %d receipts\n", len(receipts))
	return subcommands.ExitSuccess
}
