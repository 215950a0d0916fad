package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/query"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

const dateInputLayout = "2006-01-02"

var saleColumns = []table.Column{
	{Title: "Date", Width: 16},
	{Title: "Book", Width: 24},
	{Title: "Seller", Width: 18},
	{Title: "Qty", Width: 4},
	{Title: "Total", Width: 12},
}

type salesLoadedMsg struct {
	gen   int
	sales []model.Sale
	err   error
}

type salesView struct {
	gen     int
	loading bool
	loaded  bool
	all     []model.Sale
	page    int
	result  query.Result[model.Sale]
	from    time.Time
	to      time.Time

	search    textinput.Model
	searching bool

	rangeMode   bool
	rangeInputs []textinput.Model
	rangeIndex  int
	rangeErr    string

	table    table.Model
	currency string
	loc      *time.Location
}

func newSalesView(currency string, loc *time.Location) salesView {
	v := salesView{
		page:     1,
		search:   newInput("Search: "),
		table:    newTable(saleColumns),
		currency: currency,
		loc:      loc,
		rangeInputs: []textinput.Model{
			newInput("From (YYYY-MM-DD): "),
			newInput("To   (YYYY-MM-DD): "),
		},
	}
	v.search.Placeholder = "book or seller"
	return v
}

func (v *salesView) fetch(ctx context.Context, backend Backend) tea.Cmd {
	v.gen++
	v.loading = true
	gen := v.gen
	return func() tea.Msg {
		sales, err := backend.ListSales(ctx)
		return salesLoadedMsg{gen: gen, sales: sales, err: err}
	}
}

func (v *salesView) apply(msg salesLoadedMsg) bool {
	if msg.gen != v.gen {
		return false
	}
	v.loading = false
	if msg.err != nil {
		return true
	}
	v.all = msg.sales
	v.loaded = true
	v.requery()
	return true
}

func (v *salesView) options() query.Options {
	return query.Options{Search: v.search.Value(), From: v.from, To: v.to}
}

func (v *salesView) requery() {
	opts := v.options()
	res := query.Sales(v.all, opts, v.page, v.loc)
	if clamped := query.ClampPage(v.page, res.TotalPages); clamped != v.page {
		v.page = clamped
		res = query.Sales(v.all, opts, v.page, v.loc)
	}
	v.result = res
	rows := make([]table.Row, 0, len(res.Items))
	for _, s := range res.Items {
		date := ""
		if !s.Date.IsZero() {
			date = s.Date.In(v.loc).Format("02/01/2006 15:04")
		}
		rows = append(rows, table.Row{
			date,
			s.Book.Title,
			s.User.Name,
			strconv.Itoa(s.Quantity),
			stats.FormatMoney(s.Total, v.currency),
		})
	}
	v.table.SetRows(rows)
	if v.table.Cursor() >= len(rows) {
		v.table.SetCursor(maxInt(0, len(rows)-1))
	}
}

func (v *salesView) resize(width, height int) {
	v.table.SetColumns(fitColumns(saleColumns, []int{1, 2}, width))
	v.table.SetWidth(width)
	v.table.SetHeight(maxInt(2, height-2))
	v.search.Width = maxInt(10, width-len(v.search.Prompt)-2)
}

func (v *salesView) capturesKeys() bool {
	return v.searching || v.rangeMode
}

func (v *salesView) startRange() tea.Cmd {
	v.rangeMode = true
	v.rangeErr = ""
	v.rangeInputs[0].SetValue(formatBound(v.from))
	v.rangeInputs[1].SetValue(formatBound(v.to))
	return v.setRangeIndex(0)
}

func (v *salesView) setRangeIndex(idx int) tea.Cmd {
	count := len(v.rangeInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	v.rangeIndex = idx
	var cmd tea.Cmd
	for i := range v.rangeInputs {
		if i == idx {
			cmd = v.rangeInputs[i].Focus()
		} else {
			v.rangeInputs[i].Blur()
		}
	}
	return cmd
}

func (v *salesView) applyRange() error {
	from, err := query.ParseDate(v.rangeInputs[0].Value(), v.loc)
	if err != nil {
		return err
	}
	to, err := query.ParseDate(v.rangeInputs[1].Value(), v.loc)
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("end date is before start date")
	}
	v.from, v.to = from, to
	return nil
}

func (v *salesView) handleKey(ctx context.Context, backend Backend, msg tea.KeyMsg) tea.Cmd {
	if v.rangeMode {
		switch msg.Type {
		case tea.KeyEsc:
			v.rangeMode = false
			v.rangeErr = ""
			return nil
		case tea.KeyEnter:
			if err := v.applyRange(); err != nil {
				v.rangeErr = err.Error()
				return nil
			}
			v.rangeMode = false
			v.rangeErr = ""
			v.requery()
			return nil
		case tea.KeyTab:
			return v.setRangeIndex(v.rangeIndex + 1)
		case tea.KeyShiftTab:
			return v.setRangeIndex(v.rangeIndex - 1)
		}
		var cmd tea.Cmd
		v.rangeInputs[v.rangeIndex], cmd = v.rangeInputs[v.rangeIndex].Update(msg)
		return cmd
	}
	if v.searching {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			v.searching = false
			v.search.Blur()
			return nil
		}
		var cmd tea.Cmd
		v.search, cmd = v.search.Update(msg)
		v.requery()
		return cmd
	}
	switch msg.String() {
	case "/":
		v.searching = true
		return v.search.Focus()
	case "f":
		return v.startRange()
	case "[":
		if v.page > 1 {
			v.page--
			v.requery()
		}
		return nil
	case "]":
		if v.page < v.result.TotalPages {
			v.page++
			v.requery()
		}
		return nil
	case "r":
		return v.fetch(ctx, backend)
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *salesView) view() string {
	lines := []string{v.filterLine()}
	if v.rangeMode {
		for _, input := range v.rangeInputs {
			lines = append(lines, input.View())
		}
		if v.rangeErr != "" {
			lines = append(lines, errorStyle.Render(v.rangeErr))
		}
		lines = append(lines, headerStyle.Render("tab: next field  enter: apply  esc: cancel  empty: open bound"))
		return strings.Join(lines, "\n")
	}
	switch {
	case !v.loaded && v.loading:
		lines = append(lines, "Loading sales...")
	case !v.loaded:
		lines = append(lines, "Sales unavailable. Press r to retry.")
	case v.result.Matches == 0:
		lines = append(lines, "No sales found.")
	default:
		lines = append(lines, tableMutedStyle.Render(v.table.View()))
	}
	lines = append(lines, pageLine(v.result.Page, v.result.TotalPages, v.result.Matches, v.loading))
	return strings.Join(lines, "\n")
}

func (v *salesView) filterLine() string {
	search := "(press / to filter)"
	if v.searching {
		search = ""
	} else if q := strings.TrimSpace(v.search.Value()); q != "" {
		search = q
	}
	period := fmt.Sprintf("  Period: %s .. %s (f)", orAny(formatBound(v.from)), orAny(formatBound(v.to)))
	if v.searching {
		return v.search.View() + headerStyle.Render(period)
	}
	return headerStyle.Render("Search: " + search + period)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateInputLayout)
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
