package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio/internal/app"
)

var commands = []subcommands.Command{
	&cacheStatusCmd{},
	&cacheClearCmd{},
	&snapshotCmd{},
	&performanceCmd{},
	&portfolioCmd{},
}

// withApp opens the App, runs fn and closes it again.
func withApp(fn func(a *app.App) error) subcommands.ExitStatus {
	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type cacheStatusCmd struct{}

func (*cacheStatusCmd) Name() string     { return "cache-status" }
func (*cacheStatusCmd) Synopsis() string { return "show cached resources and freshness for a symbol" }
func (*cacheStatusCmd) Usage() string {
	return `folio cache-status <symbol>

  Lists every cached resource for the symbol with its age and TTL.
`
}
func (*cacheStatusCmd) SetFlags(f *flag.FlagSet) {}

func (*cacheStatusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return withApp(func(a *app.App) error {
		status, err := a.Cache.Status(f.Arg(0))
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, status)
	})
}

type cacheClearCmd struct{}

func (*cacheClearCmd) Name() string     { return "cache-clear" }
func (*cacheClearCmd) Synopsis() string { return "clear the cache, a symbol, or one resource" }
func (*cacheClearCmd) Usage() string {
	return `folio cache-clear [<symbol> [<resource>]]

  With no arguments the whole cache is removed.
`
}
func (*cacheClearCmd) SetFlags(f *flag.FlagSet) {}

func (*cacheClearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return withApp(func(a *app.App) error {
		switch f.NArg() {
		case 0:
			return a.Cache.Clear()
		case 1:
			return a.Cache.InvalidateSymbol(f.Arg(0))
		default:
			return a.Cache.Invalidate(f.Arg(0), f.Arg(1))
		}
	})
}

type snapshotCmd struct {
	force bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record today's portfolio snapshot" }
func (*snapshotCmd) Usage() string {
	return `folio snapshot [-force]

  Values the portfolio and stores today's snapshot. An existing snapshot
  for today is kept unless -force is given.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "overwrite today's snapshot")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(func(a *app.App) error {
		result, err := a.PortfolioService.TakeSnapshot(ctx, c.force)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, result)
	})
}

type performanceCmd struct{}

func (*performanceCmd) Name() string     { return "performance" }
func (*performanceCmd) Synopsis() string { return "show 1W, 1M, 3M and YTD performance" }
func (*performanceCmd) Usage() string {
	return `folio performance
`
}
func (*performanceCmd) SetFlags(f *flag.FlagSet) {}

func (*performanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(func(a *app.App) error {
		perf, err := a.PortfolioService.Performance(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, perf.Periods)
	})
}

type portfolioCmd struct {
	summary bool
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "print the priced portfolio" }
func (*portfolioCmd) Usage() string {
	return `folio portfolio [-summary]
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.summary, "summary", false, "print only the totals")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(func(a *app.App) error {
		p, err := a.PortfolioService.GetPortfolio(ctx)
		if err != nil {
			return err
		}
		if c.summary {
			return printJSON(os.Stdout, p.Summary)
		}
		return printJSON(os.Stdout, p)
	})
}
