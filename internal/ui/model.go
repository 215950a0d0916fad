// Package ui provides the Bubble Tea admin interface.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

const (
	tabDashboard = iota
	tabBooks
	tabSales
)

type screen int

const (
	screenLogin screen = iota
	screenMain
)

// ExpiredNotice is shown on the login screen after a forced logout.
const ExpiredNotice = "Session expired. Please sign in again."

// Backend is what the interface needs from the application.
type Backend interface {
	Login(ctx context.Context, email, password string) (model.Identity, error)
	Logout() error
	Dashboard(ctx context.Context) (stats.Dashboard, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	DeleteBook(ctx context.Context, id string) error
	ListSales(ctx context.Context) ([]model.Sale, error)
}

// Options configures the interface.
type Options struct {
	// Authenticated starts on the main screen.
	Authenticated bool
	Identity      model.Identity
	// Email prefills the login form.
	Email string
	// Notice is shown on the login screen.
	Notice   string
	Currency string
	Location *time.Location
}

// SessionExpiredMsg moves the interface back to the login screen. Send it
// from the session's expiry hook.
type SessionExpiredMsg struct {
	Reason string
}

// Model implements the Bubble Tea admin UI.
type Model struct {
	backend Backend
	opts    Options

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	screen   screen
	identity model.Identity

	login     loginForm
	tabs      []string
	activeTab int
	dashboard dashboardView
	books     booksView
	sales     salesView

	width  int
	height int

	errMsg string
	status string
}

// NewModel constructs the UI. Fetches run on a context derived from ctx that
// is cancelled when the user quits or the session ends.
func NewModel(ctx context.Context, backend Backend, opts Options) *Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	m := &Model{
		backend:   backend,
		opts:      opts,
		parent:    ctx,
		login:     newLoginForm(opts.Email),
		tabs:      []string{"Dashboard", "Books", "Sales"},
		dashboard: newDashboardView(),
		books:     newBooksView(opts.Currency),
		sales:     newSalesView(opts.Currency, opts.Location),
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.login.notice = opts.Notice
	if opts.Authenticated {
		m.screen = screenMain
		m.identity = opts.Identity
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.screen == screenMain {
		return m.fetchAll()
	}
	return m.login.focus()
}

func (m *Model) fetchAll() tea.Cmd {
	return tea.Batch(
		m.dashboard.fetch(m.ctx, m.backend),
		m.books.fetch(m.ctx, m.backend),
		m.sales.fetch(m.ctx, m.backend),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case SessionExpiredMsg:
		return m, m.toLogin(ExpiredNotice)
	case loginResultMsg:
		return m.handleLogin(msg)
	case dashboardLoadedMsg:
		if m.dashboard.apply(msg) {
			m.noteError(msg.err)
			m.dashboard.render(m.width, m.opts.Currency)
		}
		return m, nil
	case booksLoadedMsg:
		if m.books.apply(msg) {
			m.noteError(msg.err)
		}
		return m, nil
	case salesLoadedMsg:
		if m.sales.apply(msg) {
			m.noteError(msg.err)
		}
		return m, nil
	case bookDeletedMsg:
		return m.handleBookDeleted(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancel()
		return m, tea.Quit
	}
	if m.screen == screenLogin {
		if msg.Type == tea.KeyEsc {
			m.cancel()
			return m, tea.Quit
		}
		return m, m.login.update(m.ctx, m.backend, msg)
	}

	if m.capturesKeys() {
		return m, m.updateActive(msg)
	}
	switch msg.String() {
	case "q":
		m.cancel()
		return m, tea.Quit
	case "left", "h", "shift+tab":
		m.moveTab(-1)
		return m, nil
	case "right", "l", "tab":
		m.moveTab(1)
		return m, nil
	case "1", "2", "3":
		m.activeTab = int(msg.String()[0] - '1')
		return m, nil
	case "L":
		if err := m.backend.Logout(); err != nil {
			m.errMsg = err.Error()
		}
		return m, m.toLogin("Signed out.")
	}
	m.errMsg = ""
	m.status = ""
	return m, m.updateActive(msg)
}

func (m *Model) capturesKeys() bool {
	switch m.activeTab {
	case tabBooks:
		return m.books.capturesKeys()
	case tabSales:
		return m.sales.capturesKeys()
	}
	return false
}

func (m *Model) updateActive(msg tea.KeyMsg) tea.Cmd {
	switch m.activeTab {
	case tabBooks:
		return m.books.handleKey(m.ctx, m.backend, msg)
	case tabSales:
		return m.sales.handleKey(m.ctx, m.backend, msg)
	default:
		switch msg.String() {
		case "r":
			cmd := m.dashboard.fetch(m.ctx, m.backend)
			m.dashboard.render(m.width, m.opts.Currency)
			return cmd
		case "g", "home":
			m.dashboard.viewport.GotoTop()
			return nil
		case "G", "end":
			m.dashboard.viewport.GotoBottom()
			return nil
		}
		var cmd tea.Cmd
		m.dashboard.viewport, cmd = m.dashboard.viewport.Update(msg)
		return cmd
	}
}

func (m *Model) handleLogin(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if m.screen != screenLogin {
		return m, nil
	}
	m.login.pending = false
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, api.ErrInvalidCredentials):
			m.login.errMsg = "Invalid email or password."
		default:
			m.login.errMsg = api.UserMessage(msg.err)
		}
		return m, nil
	}
	m.identity = msg.identity
	m.login.notice = ""
	m.login.inputs[1].SetValue("")
	m.screen = screenMain
	m.errMsg = ""
	m.status = ""
	m.updateLayout()
	return m, m.fetchAll()
}

func (m *Model) handleBookDeleted(msg bookDeletedMsg) (tea.Model, tea.Cmd) {
	if m.screen != screenMain {
		return m, nil
	}
	m.books.deleting = false
	if msg.err != nil {
		m.noteError(msg.err)
		return m, nil
	}
	m.status = fmt.Sprintf("Deleted %q.", msg.book.Title)
	return m, tea.Batch(m.books.fetch(m.ctx, m.backend), m.dashboard.fetch(m.ctx, m.backend))
}

// toLogin tears the main screen down. In-flight fetches are cancelled and
// their results dropped.
func (m *Model) toLogin(notice string) tea.Cmd {
	if m.screen == screenLogin {
		if notice != "" {
			m.login.notice = notice
		}
		return nil
	}
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(m.parent)
	m.screen = screenLogin
	m.identity = model.Identity{}
	m.errMsg = ""
	m.status = ""
	// Skip a generation so late results of the old session never match.
	dashGen, booksGen, salesGen := m.dashboard.gen+1, m.books.gen+1, m.sales.gen+1
	m.dashboard = newDashboardView()
	m.books = newBooksView(m.opts.Currency)
	m.sales = newSalesView(m.opts.Currency, m.opts.Location)
	m.dashboard.gen, m.books.gen, m.sales.gen = dashGen, booksGen, salesGen
	m.updateLayout()
	return m.login.reset(notice)
}

// noteError shows err in the footer. Expiry is reported by the redirect.
func (m *Model) noteError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, api.ErrAuthorizationExpired) {
		return
	}
	m.errMsg = api.UserMessage(err)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight
	footerHeight = 1
	if m.errMsg != "" || m.status != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// Size for the taller footer so the body does not jump when a message appears.
	_, bodyHeight, _ := m.layoutHeights()
	if m.errMsg == "" && m.status == "" {
		bodyHeight--
	}
	m.dashboard.resize(m.width, maxInt(1, bodyHeight))
	m.dashboard.render(m.width, m.opts.Currency)
	m.books.resize(m.width, bodyHeight)
	m.sales.resize(m.width, bodyHeight)
	for i := range m.login.inputs {
		m.login.inputs[i].Width = maxInt(10, modalWidth(m.width)-20)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.screen == screenLogin {
		return fitLines(m.login.view(m.width, m.height), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs)+1)
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	who := m.identity.Name
	if who == "" {
		who = m.identity.Email
	}
	if who != "" {
		parts = append(parts, headerStyle.Padding(1, 2).Render(truncateLine(who, 30)))
	}
	return padLines(lipgloss.JoinHorizontal(lipgloss.Top, parts...), m.width)
}

func (m *Model) renderBody() string {
	switch m.activeTab {
	case tabBooks:
		return m.books.view(m.width)
	case tabSales:
		return m.sales.view()
	default:
		return m.dashboard.viewport.View()
	}
}

func (m *Model) renderHelp() string {
	var help string
	switch m.activeTab {
	case tabBooks:
		help = "Tabs: left/right  Search: /  Page: [ ]  Delete: d  Refresh: r  Logout: L  Quit: q"
	case tabSales:
		help = "Tabs: left/right  Search: /  Period: f  Page: [ ]  Refresh: r  Logout: L  Quit: q"
	default:
		help = "Tabs: left/right  Scroll: up/down  Refresh: r  Logout: L  Quit: q"
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFooter() string {
	lines := []string{m.renderHelp()}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(truncateLine(m.errMsg, m.width)))
	} else if m.status != "" {
		lines = append(lines, noticeStyle.Render(truncateLine(m.status, m.width)))
	}
	return strings.Join(lines, "\n")
}
