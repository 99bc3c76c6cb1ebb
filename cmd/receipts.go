package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type receiptsCmd struct {
	year int
}

func (*receiptsCmd) Name() string { return "receipts" }
func (*receiptsCmd) Synopsis() string {
	return "print the entitled dividend receipts from the last reconciliation"
}
func (*receiptsCmd) Usage() string { return "carteira receipts [-year 2024]\n" }
func (c *receiptsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "only receipts whose record date falls in this year")
}
func (c *receiptsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	receipts, err := a.store.Receipts()
	if err != nil {
		fmt.Println("failed to read dividends:", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tRECORD\tPAYMENT\tQUANTITY\tRATE\tAMOUNT\tSTATUS")
	for _, r := range receipts {
		if c.year != 0 && r.RecordDate.Year() != c.year {
			continue
		}
		payment := r.PayDate.String()
		if r.PayEstimated {
			payment += " (est)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Ticker, r.RecordDate, payment, r.Quantity, r.Rate, r.Amount, r.Status)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
