package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type MenuTab int

const (
	ModelsTab MenuTab = iota
	CommandsTab
	tabCount
)

// ModelItem is one selectable model.
type ModelItem struct {
	ID       string
	Name     string
	IsActive bool
}

// CommandItem is a slash command shown on the Commands tab.
type CommandItem struct {
	Command     string
	Description string
}

// SwitchModelMsg asks the chat to switch to ModelID.
type SwitchModelMsg struct{ ModelID string }

// ShowToastMsg shows Message in the toast. Warn marks a failure.
type ShowToastMsg struct {
	Message string
	Warn    bool
}

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// QuickMenuModel is an overlay with the model picker and a command
// reference.
type QuickMenuModel struct {
	active    bool
	activeTab MenuTab
	cursorPos int
	width     int
	height    int

	models   []ModelItem
	commands []CommandItem

	focusedStyle   lipgloss.Style
	activeStyle    lipgloss.Style
	headerStyle    lipgloss.Style
	hintStyle      lipgloss.Style
	borderStyle    lipgloss.Style
	tabStyle       lipgloss.Style
	activeTabStyle lipgloss.Style
}

func NewQuickMenuModel(commands []CommandItem) QuickMenuModel {
	accent := lipgloss.Color("86")
	return QuickMenuModel{
		commands:       commands,
		focusedStyle:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		activeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		headerStyle:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		hintStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		borderStyle:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 2),
		tabStyle:       lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("245")),
		activeTabStyle: lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#000000")).Background(accent).Bold(true),
	}
}

// SetModels replaces the model list and marks current as active.
func (m *QuickMenuModel) SetModels(models []ModelItem, current string) {
	m.models = make([]ModelItem, len(models))
	for i, it := range models {
		it.IsActive = it.ID == current
		m.models[i] = it
	}
	if m.cursorPos > m.maxCursorPos() {
		m.cursorPos = 0
	}
}

func (m QuickMenuModel) Update(msg tea.Msg) (QuickMenuModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case SwitchModelMsg:
		for i := range m.models {
			m.models[i].IsActive = m.models[i].ID == msg.ModelID
		}
		return m, nil
	case tea.KeyMsg:
		if !m.active {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			m.active = false
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.cursorPos = 0
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			m.cursorPos = 0
		case "up", "k":
			if m.cursorPos > 0 {
				m.cursorPos--
			} else {
				m.cursorPos = m.maxCursorPos()
			}
		case "down", "j":
			if m.cursorPos < m.maxCursorPos() {
				m.cursorPos++
			} else {
				m.cursorPos = 0
			}
		case "enter":
			return m, m.handleSelection()
		}
	}
	return m, nil
}

func (m QuickMenuModel) maxCursorPos() int {
	var n int
	switch m.activeTab {
	case ModelsTab:
		n = len(m.models)
	case CommandsTab:
		n = len(m.commands)
	}
	return max(n-1, 0)
}

func (m *QuickMenuModel) handleSelection() tea.Cmd {
	switch m.activeTab {
	case ModelsTab:
		if m.cursorPos >= len(m.models) {
			return nil
		}
		id := m.models[m.cursorPos].ID
		m.active = false
		return func() tea.Msg { return SwitchModelMsg{ModelID: id} }
	case CommandsTab:
		if m.cursorPos >= len(m.commands) {
			return nil
		}
		cmd := m.commands[m.cursorPos].Command
		if err := clipboardWrite(cmd); err != nil {
			return warnToastCmd("Clipboard unavailable")
		}
		return showToastCmd("Copied " + cmd)
	}
	return nil
}

func showToastCmd(message string) tea.Cmd {
	return func() tea.Msg { return ShowToastMsg{Message: message} }
}

func warnToastCmd(message string) tea.Cmd {
	return func() tea.Msg { return ShowToastMsg{Message: message, Warn: true} }
}

func (m *QuickMenuModel) Toggle() {
	m.active = !m.active
	if m.active {
		m.activeTab = ModelsTab
		m.cursorPos = 0
	}
}

func (m *QuickMenuModel) Close()        { m.active = false }
func (m QuickMenuModel) IsActive() bool { return m.active }

func (m QuickMenuModel) View() string {
	if !m.active {
		return ""
	}
	const menuWidth = 56
	var content strings.Builder
	header := m.headerStyle.Render("💬 Quick Menu")
	closeHint := m.hintStyle.Render("[ESC to close]")
	pad := max(menuWidth-lipgloss.Width(header)-lipgloss.Width(closeHint)-4, 1)
	content.WriteString(header + strings.Repeat(" ", pad) + closeHint + "\n")
	content.WriteString(strings.Repeat("─", menuWidth-4) + "\n\n")
	content.WriteString(m.renderTabBar() + "\n\n")
	switch m.activeTab {
	case ModelsTab:
		content.WriteString(m.renderModelsTab())
	case CommandsTab:
		content.WriteString(m.renderCommandsTab())
	}
	content.WriteString("\n" + strings.Repeat("─", menuWidth-4) + "\n")
	content.WriteString(m.renderFooter())
	box := m.borderStyle.Width(menuWidth).Render(content.String())
	if m.width <= 0 {
		return box
	}
	return lipgloss.Place(m.width, max(m.height, lipgloss.Height(box)), lipgloss.Center, lipgloss.Center, box)
}

func (m QuickMenuModel) renderTabBar() string {
	tabs := []string{"Models", "Commands"}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("|")
	pieces := make([]string, 0, len(tabs)*2)
	for i, tab := range tabs {
		if i > 0 {
			pieces = append(pieces, sep)
		}
		if MenuTab(i) == m.activeTab {
			pieces = append(pieces, m.activeTabStyle.Render(tab))
		} else {
			pieces = append(pieces, m.tabStyle.Render(tab))
		}
	}
	return strings.Join(pieces, " ")
}

func (m QuickMenuModel) renderModelsTab() string {
	if len(m.models) == 0 {
		return m.hintStyle.Render("No models available") + "\n"
	}
	var s strings.Builder
	for i, it := range m.models {
		cursor := "  "
		if i == m.cursorPos {
			cursor = "→ "
		}
		mark := " "
		if it.IsActive {
			mark = "✓"
		}
		line := fmt.Sprintf("%s%s %s (%s)", cursor, mark, it.Name, it.ID)
		switch {
		case i == m.cursorPos:
			line = m.focusedStyle.Render(line)
		case it.IsActive:
			line = m.activeStyle.Render(line)
		}
		s.WriteString(line + "\n")
	}
	return s.String()
}

func (m QuickMenuModel) renderCommandsTab() string {
	var s strings.Builder
	for i, c := range m.commands {
		cursor := "  "
		if i == m.cursorPos {
			cursor = "→ "
		}
		line := fmt.Sprintf("%s%-12s %s", cursor, c.Command, m.hintStyle.Render(c.Description))
		if i == m.cursorPos {
			line = m.focusedStyle.Render(fmt.Sprintf("%s%-12s", cursor, c.Command)) + " " + m.hintStyle.Render(c.Description)
		}
		s.WriteString(line + "\n")
	}
	return s.String()
}

func (m QuickMenuModel) renderFooter() string {
	shortcuts := []string{"↑↓: navigate", "Enter: select", "Tab: sections", "Esc: close"}
	if m.activeTab == CommandsTab {
		shortcuts[1] = "Enter: copy"
	}
	return m.hintStyle.Render(strings.Join(shortcuts, "  "))
}
