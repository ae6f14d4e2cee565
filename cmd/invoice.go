package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			res := port.HealthCheck(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\nmessage: %s\n", res.Status, res.Message)
			keys := make([]string, 0, len(res.Details))
			for k := range res.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, res.Details[k])
			}
			if res.Status != invoice.Healthy {
				return errors.New("provider unhealthy")
			}
			return nil
		},
	}
}

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print provider limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			c := port.Capabilities()
			out := cmd.OutOrStdout()
			types := make([]string, 0, len(c.SupportedTypes))
			for _, t := range c.SupportedTypes {
				types = append(types, string(t))
			}
			methods := make([]string, 0, len(c.PaymentMethods))
			for _, m := range c.PaymentMethods {
				methods = append(methods, string(m))
			}
			fmt.Fprintf(out, "provider:        %s\n", c.Provider)
			fmt.Fprintf(out, "types:           %s\n", strings.Join(types, ", "))
			fmt.Fprintf(out, "formats:         %s\n", strings.Join(c.SupportedFormats, ", "))
			fmt.Fprintf(out, "payment methods: %s\n", strings.Join(methods, ", "))
			fmt.Fprintf(out, "currencies:      %s\n", strings.Join(c.Currencies, ", "))
			fmt.Fprintf(out, "max items:       %d\n", c.MaxItemsPerInvoice)
			fmt.Fprintf(out, "max amount:      %.2f\n", c.MaxInvoiceAmount)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	var byNumber bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			var res *invoice.Result
			if byNumber {
				res, err = port.GetInvoiceByNumber(cmd.Context(), args[0])
			} else {
				res, err = port.GetInvoice(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if res == nil {
				return errors.Errorf("invoice %s not found", args[0])
			}
			printInvoice(cmd.OutOrStdout(), *res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byNumber, "number", false, "treat the argument as an invoice number")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		page, limit int
		status      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			res, err := port.ListInvoices(cmd.Context(), invoice.SearchParams{
				Page:   page,
				Limit:  limit,
				Status: invoice.Status(strings.ToUpper(status)),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, inv := range res.Invoices {
				printInvoice(out, inv)
			}
			fmt.Fprintf(out, "page %d/%d, %d invoices, more: %t\n", res.Page, res.TotalPages, res.Total, res.HasMore)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate invoice amounts by status and type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			s, err := port.GetStats(cmd.Context(), invoice.SearchParams{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "invoices:  %d\n", s.TotalInvoices)
			fmt.Fprintf(out, "total:     %.2f %s\n", s.TotalAmount, s.Currency)
			fmt.Fprintf(out, "paid:      %.2f\n", s.PaidAmount)
			fmt.Fprintf(out, "pending:   %.2f\n", s.PendingAmount)
			fmt.Fprintf(out, "overdue:   %.2f\n", s.OverdueAmount)
			fmt.Fprintf(out, "cancelled: %.2f\n", s.CancelledAmount)
			for _, st := range invoice.Statuses() {
				if n := s.ByStatus[st]; n > 0 {
					fmt.Fprintf(out, "  %-10s %d\n", st, n)
				}
			}
			return nil
		},
	}
}

func newPDFCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Download the invoice PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := newPort()
			if err != nil {
				return err
			}
			pdf, err := port.GeneratePDF(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".pdf"
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", output)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d bytes to %s\n", len(pdf), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <id>.pdf)")
	return cmd
}

func printInvoice(out io.Writer, inv invoice.Result) {
	fmt.Fprintf(out, "%-12s %-16s %-10s %-12s %12.2f %s\n",
		inv.ID, inv.InvoiceNumber, inv.Status, inv.IssueDate.Format("2006-01-02"), inv.TotalAmount, inv.Currency)
}
