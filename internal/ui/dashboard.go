package ui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

const plotHeight = 8

type dashboardLoadedMsg struct {
	gen       int
	dashboard stats.Dashboard
	err       error
}

type dashboardView struct {
	gen      int
	loading  bool
	loaded   bool
	data     stats.Dashboard
	viewport viewport.Model
}

func newDashboardView() dashboardView {
	return dashboardView{viewport: viewport.New(0, 0)}
}

func (v *dashboardView) fetch(ctx context.Context, backend Backend) tea.Cmd {
	v.gen++
	v.loading = true
	gen := v.gen
	return func() tea.Msg {
		d, err := backend.Dashboard(ctx)
		return dashboardLoadedMsg{gen: gen, dashboard: d, err: err}
	}
}

// apply stores a fresh snapshot. Failed fetches keep the previous metrics.
func (v *dashboardView) apply(msg dashboardLoadedMsg) bool {
	if msg.gen != v.gen {
		return false
	}
	v.loading = false
	if msg.err != nil {
		return true
	}
	v.data = msg.dashboard
	v.loaded = true
	return true
}

func (v *dashboardView) resize(width, height int) {
	v.viewport.Width = width
	v.viewport.Height = height
}

func (v *dashboardView) render(width int, currency string) {
	switch {
	case v.loaded:
		v.viewport.SetContent(renderDashboard(v.data, width, currency))
	case v.loading:
		v.viewport.SetContent("Loading dashboard...")
	default:
		v.viewport.SetContent("Dashboard unavailable. Press r to retry.")
	}
}

func renderDashboard(d stats.Dashboard, width int, currency string) string {
	if width <= 0 {
		width = 80
	}
	sections := []string{renderCards(d.Summary, width, currency)}

	var rankings bytes.Buffer
	if err := stats.RenderRanking(&rankings, "Top books", "Book", "Sold", d.Summary.TopBooks, func(e model.RankedEntry) string {
		return e.Metric.String()
	}); err != nil {
		return fmt.Sprintf("Failed to render rankings: %v", err)
	}
	if err := stats.RenderRanking(&rankings, "Top sellers", "Seller", "Revenue", d.Summary.TopSellers, func(e model.RankedEntry) string {
		return stats.FormatMoney(e.Metric, currency)
	}); err != nil {
		return fmt.Sprintf("Failed to render rankings: %v", err)
	}
	sections = append(sections, strings.TrimRight(rankings.String(), "\n"))

	var plot bytes.Buffer
	if err := stats.PlotRevenue(&plot, "Revenue by day", d.Summary.ByDate, stats.PlotOptions{
		Width:    width,
		Height:   plotHeight,
		Currency: currency,
		Color:    true,
	}); err != nil {
		return fmt.Sprintf("Failed to render revenue: %v", err)
	}
	sections = append(sections, strings.TrimRight(plot.String(), "\n"))

	footer := headerStyle.Render(fmt.Sprintf("%d sales  updated %s", d.SaleCount, d.GeneratedAt.Format("15:04:05")))
	sections = append(sections, footer)
	return strings.Join(sections, "\n\n")
}

func renderCards(s model.Summary, width int, currency string) string {
	best := stats.BestSeller(s)
	if best == "" {
		best = "none"
	}
	cards := []string{
		metricCard("Sales today", strconv.Itoa(s.Today.Count)),
		metricCard("Revenue today", stats.FormatMoney(s.Today.Revenue, currency)),
		metricCard("Revenue this month", stats.FormatMoney(s.Month.Revenue, currency)),
		metricCard("Best seller", stats.Truncate(best, 30)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}
