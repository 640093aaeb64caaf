package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// main wires the CLI and hands the signal-aware context to the commands.
// Business logic lives in the internal service packages.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tiptap-server",
		Usage: "TipTap Pay product and order API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP listen port (overrides PORT)"},
			&cli.StringFlag{Name: "database-url", Usage: "Postgres URL; empty keeps stores in memory (overrides DATABASE_URL)"},
			&cli.StringFlag{Name: "redis-url", Usage: "Redis URL for the product cache (overrides REDIS_URL)"},
			&cli.StringSliceFlag{Name: "kafka-broker", Usage: "Kafka seed broker for order events (overrides KAFKA_BROKERS)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides LOG_LEVEL)"},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply pending migrations before serving"},
					&cli.BoolFlag{Name: "seed-if-empty", Value: true, Usage: "load the sample catalog when the product table is empty"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateCmd,
			},
			{
				Name:   "seed",
				Usage:  "replace the catalog with the sample products",
				Action: seedCmd,
			},
		},
	}
}
