package checkout

import (
	"fmt"
	"io"
	"text/tabwriter"

	"tiptap/internal/order/models"
)

// InvoiceOptions controls the invoice header and currency label.
type InvoiceOptions struct {
	StoreName string
	Currency  string
	TaxLabel  string
}

// RenderInvoice writes a plain-text invoice for o.
func RenderInvoice(w io.Writer, o *models.Order, opts InvoiceOptions) error {
	if opts.StoreName == "" {
		opts.StoreName = "TipTap Pay"
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.TaxLabel == "" {
		opts.TaxLabel = "Tax"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t\t\t\t\n", opts.StoreName)
	fmt.Fprintf(tw, "Invoice %s\t\t\t\t\n", o.ID)
	fmt.Fprintf(tw, "Date %s\t\t\t\t\n", o.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "Payment %s\t\t\t\t\n", o.PaymentMethod)
	fmt.Fprintf(tw, "\t\t\t\t\n")
	fmt.Fprintf(tw, "Item\tQty\tPrice\tAmount\t\n")
	for _, l := range o.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t\t\n")
	fmt.Fprintf(tw, "Subtotal\t\t\t%s\t\n", o.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "%s\t\t\t%s\t\n", opts.TaxLabel, o.Tax.StringFixed(2))
	fmt.Fprintf(tw, "Total (%s)\t\t\t%s\t\n", opts.Currency, o.Total.StringFixed(2))
	return tw.Flush()
}
