package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/bookdesk/internal/model"
)

type loginResultMsg struct {
	identity model.Identity
	err      error
}

type loginForm struct {
	inputs  []textinput.Model
	index   int
	pending bool
	errMsg  string
	notice  string
}

func newLoginForm(email string) loginForm {
	emailInput := newInput("Email:    ")
	emailInput.Placeholder = "admin@bookstore.com"
	emailInput.SetValue(email)
	passwordInput := newInput("Password: ")
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	f := loginForm{inputs: []textinput.Model{emailInput, passwordInput}}
	if strings.TrimSpace(email) != "" {
		f.index = 1
	}
	return f
}

func (f *loginForm) focus() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.index {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *loginForm) setIndex(idx int) tea.Cmd {
	count := len(f.inputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	f.index = idx
	return f.focus()
}

// reset clears the password and shows notice above the form.
func (f *loginForm) reset(notice string) tea.Cmd {
	f.inputs[1].SetValue("")
	f.pending = false
	f.errMsg = ""
	f.notice = notice
	if strings.TrimSpace(f.inputs[0].Value()) == "" {
		return f.setIndex(0)
	}
	return f.setIndex(1)
}

func (f *loginForm) update(ctx context.Context, backend Backend, msg tea.KeyMsg) tea.Cmd {
	if f.pending {
		return nil
	}
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		return f.setIndex(f.index + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return f.setIndex(f.index - 1)
	case tea.KeyEnter:
		if f.index == 0 {
			return f.setIndex(1)
		}
		email := strings.TrimSpace(f.inputs[0].Value())
		password := f.inputs[1].Value()
		if email == "" || password == "" {
			f.errMsg = "email and password are required"
			return nil
		}
		f.pending = true
		f.errMsg = ""
		return func() tea.Msg {
			identity, err := backend.Login(ctx, email, password)
			return loginResultMsg{identity: identity, err: err}
		}
	}
	var cmd tea.Cmd
	f.inputs[f.index], cmd = f.inputs[f.index].Update(msg)
	return cmd
}

func (f *loginForm) view(width, height int) string {
	boxWidth := modalWidth(width)
	textWidth := boxWidth - 4
	lines := []string{cardValueStyle.Render("bookdesk"), ""}
	if f.notice != "" {
		lines = append(lines, renderWrapped(noticeStyle.Render, f.notice, textWidth)...)
		lines = append(lines, "")
	}
	for _, input := range f.inputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, "")
	switch {
	case f.pending:
		lines = append(lines, headerStyle.Render("Signing in..."))
	case f.errMsg != "":
		lines = append(lines, renderWrapped(errorStyle.Render, f.errMsg, textWidth)...)
	default:
		lines = append(lines, headerStyle.Render("enter: sign in  tab: next field  ctrl+c: quit"))
	}
	box := modalStyle.Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
