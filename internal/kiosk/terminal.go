package kiosk

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tiptap/internal/cart"
	"tiptap/internal/catalog"
	"tiptap/internal/checkout"
	"tiptap/internal/scan"
	"tiptap/internal/tag"
)

const DefaultSettleTimeout = 10 * time.Second

const helpText = `Commands:
  arm | disarm          start or stop the scanner
  <ID>                  enter a product ID by hand
  tag <text>            simulate a tag read carrying text or a URL
  ndef <hex>            simulate a raw NDEF message read
  products              list the catalog
  cart                  show the cart and totals
  +<ID> | -<ID>         change quantity by one
  qty <ID> <n>          set quantity (0 removes)
  rm <ID>               remove from cart
  pay [method]          check out (methods: %s)
  retry                 record a paid order that failed to save
  invoice               show the last invoice
  help | quit
`

// Config wires a Terminal.
type Config struct {
	Prompt   *Prompt
	Printer  *Printer
	Source   *scan.ChannelSource
	Decoder  scan.Decoder
	Catalog  catalog.Catalog
	Cart     *cart.Cart
	Pipeline *checkout.Pipeline
	Methods  []checkout.PaymentMethod
	Invoice  checkout.InvoiceOptions
	Logger   *slog.Logger

	// SettleTimeout bounds how long a typed scan waits for its outcome.
	SettleTimeout time.Duration
	ScanOptions   []scan.Option
}

// Terminal runs the kiosk command loop.
type Terminal struct {
	prompt   *Prompt
	printer  *Printer
	source   *scan.ChannelSource
	catalog  catalog.Catalog
	cart     *cart.Cart
	pipeline *checkout.Pipeline
	methods  map[string]checkout.PaymentMethod
	order    []string
	invoice  checkout.InvoiceOptions
	logger   *slog.Logger
	settle   time.Duration

	session  *scan.Session
	outcomes chan scan.Feedback
}

// New builds the terminal and its scan session.
func New(cfg Config) *Terminal {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	t := &Terminal{
		prompt:   cfg.Prompt,
		printer:  cfg.Printer,
		source:   cfg.Source,
		catalog:  cfg.Catalog,
		cart:     cfg.Cart,
		pipeline: cfg.Pipeline,
		methods:  make(map[string]checkout.PaymentMethod, len(cfg.Methods)),
		invoice:  cfg.Invoice,
		logger:   cfg.Logger,
		settle:   cfg.SettleTimeout,
		outcomes: make(chan scan.Feedback, 8),
	}
	for _, m := range cfg.Methods {
		key := methodKey(m)
		t.methods[key] = m
		t.order = append(t.order, key)
	}
	opts := append([]scan.Option{scan.WithLogger(cfg.Logger)}, cfg.ScanOptions...)
	opts = append(opts, scan.WithListener(t.onFeedback))
	t.session = scan.New(cfg.Source, cfg.Decoder, cfg.Catalog, cfg.Cart, opts...)
	return t
}

// methodKey is the first word of the method name, lowercased: "UPI Payment" → "upi".
func methodKey(m checkout.PaymentMethod) string {
	fields := strings.Fields(strings.ToLower(m.Name()))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Session exposes the scan session, mainly for shutdown.
func (t *Terminal) Session() *scan.Session {
	return t.session
}

// Run reads commands until quit, end of input or ctx is done. The scanner
// and the prompt are released before Run returns.
func (t *Terminal) Run(ctx context.Context) error {
	defer func() {
		t.prompt.Close()
		t.session.Disarm()
		t.session.Wait()
	}()

	t.printer.Printf("TipTap Pay terminal. Type 'help' for commands.\n")
	for {
		line, err := t.prompt.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if quit := t.dispatch(ctx, line); quit {
			return nil
		}
	}
}

func (t *Terminal) dispatch(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true
	case "help":
		t.printer.Printf(helpText, strings.Join(t.order, ", "))
	case "arm":
		t.arm(ctx)
	case "disarm":
		t.session.Disarm()
		t.printer.Printf("Scanner off.\n")
	case "tag":
		t.pushRead(ctx, scan.Event{Raw: rest, Source: scan.SourceNFC, At: time.Now()})
	case "ndef":
		t.pushNDEF(ctx, rest)
	case "products":
		t.listProducts(ctx)
	case "cart":
		t.showCart()
	case "qty":
		t.setQuantity(rest)
	case "rm":
		t.cart.Remove(rest)
		t.showCart()
	case "pay":
		t.pay(ctx, rest)
	case "retry":
		t.retry(ctx)
	case "invoice":
		t.showInvoice(ctx)
	default:
		switch {
		case strings.HasPrefix(line, "+") && len(line) > 1:
			t.adjust(line[1:], t.cart.Increment)
		case strings.HasPrefix(line, "-") && len(line) > 1:
			t.adjust(line[1:], t.cart.Decrement)
		default:
			t.submit(ctx, line)
		}
	}
	return false
}

func (t *Terminal) arm(ctx context.Context) {
	if err := t.session.Arm(ctx); err != nil {
		// The session already reported the failure as feedback.
		t.logger.WarnContext(ctx, "arming scanner failed", "error", err)
		return
	}
	t.printer.Printf("Scanner on. Tap a tag or type a product ID.\n")
}

func (t *Terminal) onFeedback(fb scan.Feedback) {
	t.printer.Notice(fb)
	if fb.State.IsOutcome() {
		select {
		case t.outcomes <- fb:
		default:
		}
	}
}

func (t *Terminal) drainOutcomes() {
	for {
		select {
		case <-t.outcomes:
		default:
			return
		}
	}
}

// awaitOutcome keeps the prompt from racing the lookup it just started.
func (t *Terminal) awaitOutcome(ctx context.Context) {
	timer := time.NewTimer(t.settle)
	defer timer.Stop()
	select {
	case <-t.outcomes:
	case <-timer.C:
		t.printer.Printf("Still looking up the product...\n")
	case <-ctx.Done():
	}
}

func (t *Terminal) submit(ctx context.Context, raw string) {
	t.drainOutcomes()
	err := t.session.Submit(ctx, raw)
	switch {
	case err == nil:
		t.awaitOutcome(ctx)
	case errors.Is(err, scan.ErrNotArmed):
		t.printer.Printf("Scanner is off. Type 'arm' to start scanning.\n")
	case errors.Is(err, scan.ErrBusy):
		t.printer.Printf("Still looking up the previous item, try again in a moment.\n")
	case errors.Is(err, scan.ErrSuppressed):
	default:
		t.logger.DebugContext(ctx, "manual entry rejected", "error", err)
	}
}

func (t *Terminal) pushRead(ctx context.Context, ev scan.Event) {
	t.drainOutcomes()
	if !t.source.Push(ev) {
		t.printer.Printf("Scanner is off. Type 'arm' to start scanning.\n")
		return
	}
	t.awaitOutcome(ctx)
}

func (t *Terminal) pushNDEF(ctx context.Context, hexMsg string) {
	raw, err := hex.DecodeString(strings.ReplaceAll(hexMsg, " ", ""))
	if err != nil {
		t.printer.Printf("ndef: %v\n", err)
		return
	}
	records, err := tag.ParseMessage(raw)
	if err != nil {
		t.printer.Printf("ndef: %v\n", err)
		return
	}
	t.pushRead(ctx, scan.Event{Records: records, Source: scan.SourceNFC, At: time.Now()})
}

func (t *Terminal) listProducts(ctx context.Context) {
	products, err := t.catalog.ListAll(ctx)
	if err != nil {
		t.printer.Printf("Could not load products: %v\n", err)
		return
	}
	for _, p := range products {
		t.printer.Printf("  %-8s %-24s %8s\n", p.ID, p.Name, p.Price.StringFixed(2))
	}
}

func (t *Terminal) showCart() {
	items := t.cart.Items()
	if len(items) == 0 {
		t.printer.Printf("Cart is empty.\n")
		return
	}
	for _, it := range items {
		t.printer.Printf("  %-8s %-24s x%-3d %8s\n", it.Product.ID, it.Product.Name, it.Quantity, it.Subtotal().StringFixed(2))
	}
	totals, err := t.pipeline.Quote(t.cart)
	if err != nil {
		return
	}
	t.printer.Printf("  Items %d  Subtotal %s  Tax %s  Total %s\n",
		totals.ItemCount, totals.Subtotal.StringFixed(2), totals.Tax.StringFixed(2), totals.Total.StringFixed(2))
}

func (t *Terminal) adjust(id string, op func(string) error) {
	if err := op(id); err != nil {
		t.printer.Printf("%s: %v\n", strings.ToUpper(id), err)
		return
	}
	t.showCart()
}

func (t *Terminal) setQuantity(args string) {
	id, n, ok := strings.Cut(args, " ")
	qty, err := strconv.Atoi(strings.TrimSpace(n))
	if !ok || err != nil {
		t.printer.Printf("usage: qty <ID> <n>\n")
		return
	}
	if err := t.cart.SetQuantity(id, qty); err != nil {
		t.printer.Printf("%s: %v\n", strings.ToUpper(id), err)
		return
	}
	t.showCart()
}

func (t *Terminal) pay(ctx context.Context, name string) {
	if name == "" && len(t.order) > 0 {
		name = t.order[0]
	}
	method, ok := t.methods[strings.ToLower(name)]
	if !ok {
		t.printer.Printf("Unknown payment method %q (have: %s)\n", name, strings.Join(t.order, ", "))
		return
	}

	t.printer.Printf("Processing %s...\n", method.Name())
	o, err := t.pipeline.Checkout(ctx, t.cart, method)
	var persistErr *checkout.PersistError
	switch {
	case err == nil:
		t.printer.Printf("Payment successful! Order %s, total %s\n", o.ID, o.Total.StringFixed(2))
		t.showInvoice(ctx)
	case errors.Is(err, checkout.ErrEmptyCart):
		t.printer.Printf("Cart is empty. Scan a product first.\n")
	case errors.Is(err, checkout.ErrPaymentDeclined):
		t.printer.Printf("Payment was not completed. Your cart is unchanged.\n")
	case errors.Is(err, checkout.ErrPersistPending):
		t.printer.Printf("A paid order is still waiting to be saved. Type 'retry'.\n")
	case errors.As(err, &persistErr):
		t.printer.Printf("Payment received but order %s could not be saved. Type 'retry'.\n", persistErr.OrderID)
	default:
		t.printer.Printf("Checkout failed: %v\n", err)
	}
}

func (t *Terminal) retry(ctx context.Context) {
	o, err := t.pipeline.RetryPersist(ctx, t.cart)
	switch {
	case err == nil:
		t.printer.Printf("Order %s saved.\n", o.ID)
		t.showInvoice(ctx)
	case errors.Is(err, checkout.ErrNothingToRetry):
		t.printer.Printf("Nothing to retry.\n")
	default:
		t.printer.Printf("Order still not saved: %v\n", err)
	}
}

func (t *Terminal) showInvoice(ctx context.Context) {
	o, err := t.pipeline.LastOrder(ctx)
	if errors.Is(err, checkout.ErrNoLastOrder) {
		t.printer.Printf("No completed order yet.\n")
		return
	}
	if err != nil {
		t.printer.Printf("Could not load the last order: %v\n", err)
		return
	}
	if err := checkout.RenderInvoice(t.printer, o, t.invoice); err != nil {
		t.logger.WarnContext(ctx, "rendering invoice failed", "order_id", o.ID, "error", err)
	}
}
