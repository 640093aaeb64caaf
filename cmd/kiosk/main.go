package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"tiptap/internal/cart"
	"tiptap/internal/catalog"
	catalogclient "tiptap/internal/catalog/client"
	catalogmetrics "tiptap/internal/catalog/metrics"
	"tiptap/internal/catalog/models"
	"tiptap/internal/checkout"
	"tiptap/internal/kiosk"
	"tiptap/internal/platform/config"
	"tiptap/internal/platform/logger"
	"tiptap/internal/platform/redis"
	"tiptap/internal/scan"
	scanmetrics "tiptap/internal/scan/metrics"
	"tiptap/internal/tag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "tiptap-kiosk",
		Usage: "console scanning terminal for TipTap Pay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Usage: "API base URL (overrides API_BASE_URL)"},
			&cli.StringFlag{Name: "terminal-id", Value: hostname(), Usage: "identifies this terminal's last-order slot"},
			&cli.StringFlag{Name: "redis-url", Usage: "keep the last order in Redis (overrides REDIS_URL)"},
			&cli.DurationFlag{Name: "upi-confirm-delay", Value: 3 * time.Second, Usage: "wait before asking whether a UPI payment succeeded"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "log level for stderr"},
		},
		Action: run,
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "kiosk"
	}
	return h
}

func run(c *cli.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if c.IsSet("api") {
		cfg.Catalog.APIBaseURL = c.String("api")
	}
	if c.IsSet("redis-url") {
		cfg.Redis.URL = c.String("redis-url")
	}
	cfg.Log.Level = c.String("log-level")
	cfg.Log.Format = "text"
	log := logger.NewWithWriter(os.Stderr, cfg.Log)
	ctx := c.Context

	grammar, err := tag.NewGrammar(cfg.Catalog.CategoryCodes)
	if err != nil {
		return fmt.Errorf("category codes: %w", err)
	}

	local := catalog.NewLocal(models.SeedProducts())
	remote := catalogclient.New(cfg.Catalog.APIBaseURL, cfg.Catalog.LookupTimeout,
		catalogclient.WithFallback(local),
		catalogclient.WithLogger(log),
		catalogclient.WithMetrics(catalogmetrics.New()),
	)

	slot, closeSlot, err := newSlot(ctx, cfg, c.String("terminal-id"), log)
	if err != nil {
		return err
	}
	defer closeSlot()

	pipeline := checkout.New(
		checkout.NewOrdersClient(cfg.Catalog.APIBaseURL, cfg.Catalog.LookupTimeout),
		slot,
		cfg.Checkout.TaxRate,
		checkout.WithLogger(log),
		checkout.WithCurrency(cfg.Checkout.Currency),
	)

	prompt := kiosk.NewPrompt(os.Stdin)
	printer := kiosk.NewPrinter(os.Stdout, scan.NewNotifier(nil))
	upi := checkout.NewUPIDeepLink(
		checkout.UPIConfig{
			Payee:     cfg.Checkout.UPIPayee,
			PayeeName: cfg.Checkout.UPIPayeeName,
			Currency:  cfg.Checkout.Currency,
		},
		kiosk.NewConsoleLauncher(printer),
		kiosk.NewPromptConfirmer(prompt, printer, c.Duration("upi-confirm-delay")),
	)

	term := kiosk.New(kiosk.Config{
		Prompt:   prompt,
		Printer:  printer,
		Source:   scan.NewChannelSource(8),
		Decoder:  tag.NewDecoder(grammar, tag.WithLogger(log)),
		Catalog:  remote,
		Cart:     cart.New(),
		Pipeline: pipeline,
		Methods:  []checkout.PaymentMethod{upi, checkout.NewMock(cfg.Checkout.MockDelay)},
		Invoice:  checkout.InvoiceOptions{Currency: cfg.Checkout.Currency, TaxLabel: "GST (" + cfg.Checkout.TaxRate.Shift(2).String() + "%)"},
		Logger:   log,
		ScanOptions: []scan.Option{
			scan.WithMetrics(scanmetrics.New()),
			scan.WithDedupWindow(cfg.Scan.DedupWindow),
			scan.WithDisplayInterval(cfg.Scan.DisplayInterval),
			scan.WithLookupTimeout(cfg.Catalog.LookupTimeout),
		},
	})
	g, gctx := errgroup.WithContext(ctx)
	refreshCtx, stopRefresh := context.WithCancel(gctx)
	g.Go(func() error {
		remote.KeepLocalFresh(refreshCtx, local, cfg.Catalog.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		defer stopRefresh()
		return term.Run(gctx)
	})
	return g.Wait()
}

func newSlot(ctx context.Context, cfg config.Config, terminalID string, log *slog.Logger) (checkout.LastOrderSlot, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.WarnContext(ctx, "redis unavailable, keeping last order in memory", "error", err)
		return checkout.NewMemorySlot(), func() {}, nil
	}
	if client == nil {
		return checkout.NewMemorySlot(), func() {}, nil
	}
	return checkout.NewRedisSlot(client.Client, terminalID), func() { _ = client.Close() }, nil
}
