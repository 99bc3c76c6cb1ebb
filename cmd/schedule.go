package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"

	"github.com/rmaral/carteira"
)

type scheduleCmd struct {
	runOnStart bool
}

func (*scheduleCmd) Name() string { return "schedule" }
func (*scheduleCmd) Synopsis() string {
	return "run price and dividend reconciliation on the configured cron schedule"
}
func (*scheduleCmd) Usage() string {
	return "carteira schedule [-run-on-start]\n"
}
func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.runOnStart, "run-on-start", false, "run both reconciliations immediately before scheduling")
}
func (c *scheduleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	prices := func() {
		log.Println("running scheduled price reconciliation")
		if err := c.updatePrices(ctx, a); err != nil {
			log.Printf("price reconciliation: %v", err)
		}
	}
	dividends := func() {
		log.Println("running scheduled dividend reconciliation")
		if err := c.updateDividends(ctx, a); err != nil {
			log.Printf("dividend reconciliation: %v", err)
		}
	}

	cr := cron.New()
	if _, err := cr.AddFunc(a.cfg.Schedule.PricesCron, prices); err != nil {
		fmt.Println("register prices schedule:", err)
		return subcommands.ExitFailure
	}
	if _, err := cr.AddFunc(a.cfg.Schedule.DividendsCron, dividends); err != nil {
		fmt.Println("register dividends schedule:", err)
		return subcommands.ExitFailure
	}

	if c.runOnStart {
		prices()
		dividends()
	}

	cr.Start()
	log.Println("scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}
	cr.Stop()
	log.Println("scheduler stopped")
	return subcommands.ExitSuccess
}

func (c *scheduleCmd) updatePrices(ctx context.Context, a *app) error {
	snap, err := a.store.ReadSnapshot()
	if err != nil {
		return err
	}
	agg := carteira.NewAggregator(a.policy, a.quoteChain()...)
	return a.store.WriteQuotes(agg.Aggregate(ctx, snap.Instruments))
}

func (c *scheduleCmd) updateDividends(ctx context.Context, a *app) error {
	snap, err := a.store.ReadSnapshot()
	if err != nil {
		return err
	}
	attribution := carteira.NewAttribution(snap.Ledger, a.policy, a.dividendChain()...)
	return a.store.WriteReceipts(attribution.Receipts(ctx, snap.Instruments))
}
