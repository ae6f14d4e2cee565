package parasut

import (
	"context"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/shopspring/decimal"
)

const (
	statsPageSize = 100
	statsMaxPages = 50
)

// Stats pages through the invoice list matching params and aggregates counts
// and amounts. At most statsMaxPages pages are read.
func (c *Client) Stats(ctx context.Context, params invoice.SearchParams) (*invoice.Stats, error) {
	agg := newStatsAggregator(c.creds.DefaultCurrency())

	p := params
	p.Limit = statsPageSize
	for page := 1; page <= statsMaxPages; page++ {
		p.Page = page
		lst, err := c.list(ctx, opStats, p)
		if err != nil {
			return nil, err
		}
		agg.add(lst.Invoices)
		if !lst.HasMore {
			break
		}
		if page == statsMaxPages {
			logger.WithField("pages", statsMaxPages).Warn("invoice stats truncated, page limit reached")
		}
	}
	return agg.stats(), nil
}

type statsAggregator struct {
	currency  string
	count     int
	total     decimal.Decimal
	paid      decimal.Decimal
	pending   decimal.Decimal
	overdue   decimal.Decimal
	cancelled decimal.Decimal
	byStatus  map[invoice.Status]int
	byType    map[invoice.Type]int
}

func newStatsAggregator(currency string) *statsAggregator {
	return &statsAggregator{
		currency: currency,
		byStatus: map[invoice.Status]int{},
		byType:   map[invoice.Type]int{},
	}
}

func (a *statsAggregator) add(invoices []invoice.Result) {
	for _, inv := range invoices {
		amount := decimal.NewFromFloat(inv.TotalAmount)
		a.count++
		a.total = a.total.Add(amount)
		a.byStatus[inv.Status]++
		if inv.Type != "" {
			a.byType[inv.Type]++
		}

		switch inv.Status {
		case invoice.StatusPaid:
			a.paid = a.paid.Add(amount)
		case invoice.StatusPending, invoice.StatusApproved, invoice.StatusSent:
			a.pending = a.pending.Add(amount)
		case invoice.StatusOverdue:
			a.overdue = a.overdue.Add(amount)
		case invoice.StatusCancelled:
			a.cancelled = a.cancelled.Add(amount)
		}
	}
}

func (a *statsAggregator) stats() *invoice.Stats {
	return &invoice.Stats{
		TotalInvoices:   a.count,
		TotalAmount:     a.total.InexactFloat64(),
		PaidAmount:      a.paid.InexactFloat64(),
		PendingAmount:   a.pending.InexactFloat64(),
		OverdueAmount:   a.overdue.InexactFloat64(),
		CancelledAmount: a.cancelled.InexactFloat64(),
		Currency:        a.currency,
		ByStatus:        a.byStatus,
		ByType:          a.byType,
	}
}
