package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/bookdesk/internal/model"
)

// SalesSource lists every recorded sale.
type SalesSource interface {
	ListSales(ctx context.Context) ([]model.Sale, error)
}

// Dashboard contains the metrics of one sales snapshot.
type Dashboard struct {
	Summary     model.Summary
	SaleCount   int
	GeneratedAt time.Time
}

// BuildDashboard fetches the sales and summarizes them as one unit. On error
// nothing partial is returned.
func BuildDashboard(ctx context.Context, src SalesSource, now time.Time, opts Options) (Dashboard, error) {
	sales, err := src.ListSales(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Summary:     Summarize(sales, now, opts),
		SaleCount:   len(sales),
		GeneratedAt: now,
	}, nil
}
