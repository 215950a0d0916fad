package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/query"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

var bookColumns = []table.Column{
	{Title: "Title", Width: 24},
	{Title: "Author", Width: 18},
	{Title: "ISBN", Width: 14},
	{Title: "Price", Width: 12},
	{Title: "Stock", Width: 6},
}

type booksLoadedMsg struct {
	gen   int
	books []model.Book
	err   error
}

type bookDeletedMsg struct {
	book model.Book
	err  error
}

type booksView struct {
	gen     int
	loading bool
	loaded  bool
	all     []model.Book
	page    int
	result  query.Result[model.Book]

	search    textinput.Model
	searching bool
	confirm   *model.Book
	deleting  bool

	table    table.Model
	currency string
}

func newBooksView(currency string) booksView {
	v := booksView{
		page:     1,
		search:   newInput("Search: "),
		table:    newTable(bookColumns),
		currency: currency,
	}
	v.search.Placeholder = "title or author"
	return v
}

func (v *booksView) fetch(ctx context.Context, backend Backend) tea.Cmd {
	v.gen++
	v.loading = true
	gen := v.gen
	return func() tea.Msg {
		books, err := backend.ListBooks(ctx)
		return booksLoadedMsg{gen: gen, books: books, err: err}
	}
}

func (v *booksView) apply(msg booksLoadedMsg) bool {
	if msg.gen != v.gen {
		return false
	}
	v.loading = false
	if msg.err != nil {
		return true
	}
	v.all = msg.books
	v.loaded = true
	v.requery()
	return true
}

// requery recomputes the visible page, clamping it when the matches shrink.
func (v *booksView) requery() {
	opts := query.Options{Search: v.search.Value()}
	res := query.Books(v.all, opts, v.page)
	if clamped := query.ClampPage(v.page, res.TotalPages); clamped != v.page {
		v.page = clamped
		res = query.Books(v.all, opts, v.page)
	}
	v.result = res
	rows := make([]table.Row, 0, len(res.Items))
	for _, b := range res.Items {
		rows = append(rows, table.Row{
			b.Title,
			b.Author,
			b.ISBN,
			stats.FormatMoney(b.Price, v.currency),
			strconv.Itoa(b.Stock),
		})
	}
	v.table.SetRows(rows)
	if v.table.Cursor() >= len(rows) {
		v.table.SetCursor(maxInt(0, len(rows)-1))
	}
}

func (v *booksView) resize(width, height int) {
	v.table.SetColumns(fitColumns(bookColumns, []int{0, 1}, width))
	v.table.SetWidth(width)
	v.table.SetHeight(maxInt(2, height-2))
	v.search.Width = maxInt(10, width-len(v.search.Prompt)-2)
}

func (v *booksView) capturesKeys() bool {
	return v.searching || v.confirm != nil
}

func (v *booksView) selected() (model.Book, bool) {
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.result.Items) {
		return model.Book{}, false
	}
	return v.result.Items[idx], true
}

func (v *booksView) handleKey(ctx context.Context, backend Backend, msg tea.KeyMsg) tea.Cmd {
	if v.confirm != nil {
		switch msg.String() {
		case "y", "Y":
			book := *v.confirm
			v.confirm = nil
			v.deleting = true
			return func() tea.Msg {
				return bookDeletedMsg{book: book, err: backend.DeleteBook(ctx, book.ID)}
			}
		case "n", "N", "esc":
			v.confirm = nil
		}
		return nil
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
	case "d":
		if book, ok := v.selected(); ok && !v.deleting {
			v.confirm = &book
		}
		return nil
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *booksView) view(width int) string {
	lines := []string{v.searchLine()}
	switch {
	case !v.loaded && v.loading:
		lines = append(lines, "Loading books...")
	case !v.loaded:
		lines = append(lines, "Books unavailable. Press r to retry.")
	case v.result.Matches == 0:
		lines = append(lines, "No books found.")
	default:
		lines = append(lines, tableMutedStyle.Render(v.table.View()))
	}
	lines = append(lines, pageLine(v.result.Page, v.result.TotalPages, v.result.Matches, v.loading))
	body := strings.Join(lines, "\n")
	if v.confirm != nil {
		return body + "\n" + errorStyle.Render(truncateLine(fmt.Sprintf("Delete %q? y/n", v.confirm.Title), width))
	}
	return body
}

func (v *booksView) searchLine() string {
	if v.searching {
		return v.search.View()
	}
	if q := strings.TrimSpace(v.search.Value()); q != "" {
		return headerStyle.Render(fmt.Sprintf("Search: %s", q))
	}
	return headerStyle.Render("Search: (press / to filter)")
}

func pageLine(page, total, matches int, loading bool) string {
	text := fmt.Sprintf("Page %d/%d  %d matches", page, maxInt(total, 1), matches)
	if loading {
		text += "  refreshing..."
	}
	return headerStyle.Render(text)
}
