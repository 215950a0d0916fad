package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/bookdesk/internal/model"
)

// RenderOptions controls text rendering of a dashboard.
type RenderOptions struct {
	Currency string
	Width    int
	Color    bool
}

// RenderDashboard prints the metric cards, rankings and revenue plot.
func RenderDashboard(w io.Writer, d Dashboard, opts RenderOptions) error {
	if err := RenderCards(w, d.Summary, opts.Currency); err != nil {
		return err
	}
	if err := RenderRanking(w, "Top books", "Book", "Sold", d.Summary.TopBooks, func(e model.RankedEntry) string {
		return e.Metric.String()
	}); err != nil {
		return err
	}
	if err := RenderRanking(w, "Top sellers", "Seller", "Revenue", d.Summary.TopSellers, func(e model.RankedEntry) string {
		return FormatMoney(e.Metric, opts.Currency)
	}); err != nil {
		return err
	}
	return PlotRevenue(w, "Revenue by day "+Sparkline(BucketValues(d.Summary.ByDate)), d.Summary.ByDate, PlotOptions{
		Width:    opts.Width,
		Currency: opts.Currency,
		Color:    opts.Color,
	})
}

// RenderCards prints the headline metrics.
func RenderCards(w io.Writer, s model.Summary, currency string) error {
	best := BestSeller(s)
	if best == "" {
		best = "none"
	}
	rows := [][]string{
		{"Sales today", strconv.Itoa(s.Today.Count)},
		{"Revenue today", FormatMoney(s.Today.Revenue, currency)},
		{"Revenue this month", FormatMoney(s.Month.Revenue, currency)},
		{"Best seller", best},
	}
	for _, line := range FormatTable(nil, rows, map[int]bool{1: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// RenderRanking prints a numbered ranking table.
func RenderRanking(w io.Writer, title, labelHeader, metricHeader string, entries []model.RankedEntry, metric func(model.RankedEntry) string) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprint(w, "No sales yet.\n\n")
		return err
	}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{strconv.Itoa(i + 1), Truncate(e.Label, 40), metric(e)})
	}
	for _, line := range FormatTable([]string{"#", labelHeader, metricHeader}, rows, map[int]bool{0: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
