package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// How long a toast stays visible. Warnings linger so they can be read.
const (
	ToastDuration     = 3 * time.Second
	WarnToastDuration = 5 * time.Second
)

// ToastModel is the one-line notice drawn at the top right of the chat.
type ToastModel struct {
	message   string
	warn      bool
	visible   bool
	timestamp time.Time
	width     int
}

type HideToastMsg struct{ shownAt time.Time }

func NewToastModel() ToastModel { return ToastModel{} }

func (m ToastModel) Update(msg tea.Msg) (ToastModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ShowToastMsg:
		m.message = msg.Message
		m.warn = msg.Warn
		m.visible = true
		m.timestamp = time.Now()
		shownAt := m.timestamp
		d := ToastDuration
		if msg.Warn {
			d = WarnToastDuration
		}
		return m, tea.Tick(d, func(time.Time) tea.Msg { return HideToastMsg{shownAt: shownAt} })
	case HideToastMsg:
		// A newer toast keeps its own timer.
		if msg.shownAt.IsZero() || msg.shownAt.Equal(m.timestamp) {
			m.visible = false
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}
	return m, nil
}

func (m ToastModel) Visible() bool { return m.visible }

func (m ToastModel) View() string {
	if !m.visible {
		return ""
	}
	bg := lipgloss.Color("28")
	if m.warn {
		bg = lipgloss.Color("160")
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(bg).Padding(0, 2).MarginRight(2).Bold(true)
	text := m.message
	// padding and margin take six columns
	if limit := m.width - 6; m.width > 0 && lipgloss.Width(text) > limit && limit > 1 {
		text = string([]rune(text)[:limit-1]) + "…"
	}
	toast := style.Render(text)
	if m.width <= 0 {
		return toast
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, toast)
}
