package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"webchat-cli/cmd/utils"
	"webchat-cli/internal/conn"
	"webchat-cli/internal/history"
	"webchat-cli/internal/session"
	uitk "webchat-cli/internal/tui"
)

var (
	userPrompt     = "> "
	thinkingPrompt = "💭"
	systemPrompt   = "📣"
)

const gap = "\n\n"

var copyToClipboard = clipboard.WriteAll

// chatCommands feeds /help and the quick menu's command tab.
var chatCommands = []uitk.CommandItem{
	{Command: "/help", Description: "Show this help"},
	{Command: "/model [id]", Description: "Show or switch the model"},
	{Command: "/attach <paths>", Description: "Upload text files as context"},
	{Command: "/detach [n]", Description: "Drop attachment n, or all"},
	{Command: "/files", Description: "List attached files"},
	{Command: "/clear", Description: "Clear the conversation"},
	{Command: "/reconnect", Description: "Reconnect now"},
	{Command: "/copy", Description: "Copy the last reply"},
	{Command: "/menu", Description: "Open the quick menu"},
	{Command: "/exit", Description: "Exit"},
}

// connLink is the part of the connection manager the UI drives.
type connLink interface {
	Start()
	Reconnect()
}

// notice is a local line shown after the first `after` log messages. It is
// never stored.
type notice struct {
	after int
	text  string
	isErr bool
}

type chatModel struct {
	ctx        context.Context
	sess       *session.Session
	link       connLink
	up         uploader
	serverHost string

	snap      session.Snapshot
	notices   []notice
	changes   chan struct{}
	uploading bool

	spin       spinner.Model
	history    []string
	histIndex  int
	width      int
	termHeight int
	status     string
	viewport   viewport.Model
	textarea   textarea.Model
	quickMenu  uitk.QuickMenuModel
	toast      uitk.ToastModel
	menuActive bool
}

type sessionChangedMsg struct{}

type uploadDoneMsg struct {
	files []session.Attachment
	err   error
}

type configChangedMsg struct {
	serverURL  string
	urlChanged bool
}

type configErrorMsg struct{ err error }

func newChatModel(ctx context.Context, sess *session.Session, link connLink, up uploader, serverURL string) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "> "
	ta.SetWidth(30)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(30, 5)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	width, _, _ := term.GetSize(os.Stdout.Fd())

	changes := make(chan struct{}, 1)
	sess.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	m := chatModel{
		ctx:        ctx,
		sess:       sess,
		link:       link,
		up:         up,
		serverHost: hostOf(serverURL),
		changes:    changes,
		spin:       s,
		width:      width,
		viewport:   vp,
		textarea:   ta,
		quickMenu:  uitk.NewQuickMenuModel(chatCommands),
		toast:      uitk.NewToastModel(),
	}
	m.snap = sess.Snapshot()
	for _, msg := range m.snap.Messages {
		if msg.Kind == history.KindUser {
			m.history = append(m.history, msg.Body)
		}
	}
	m.histIndex = len(m.history)
	if len(m.snap.Messages) == 0 {
		m.addNotice("Send a message or type /help for commands.")
	}
	m.setViewportContent()
	return m
}

func hostOf(serverURL string) string {
	h := strings.TrimPrefix(strings.TrimPrefix(serverURL, "http://"), "https://")
	return strings.TrimSuffix(h, "/")
}

func (m chatModel) Init() tea.Cmd {
	link := m.link
	start := func() tea.Msg {
		link.Start()
		return nil
	}
	return tea.Batch(m.spin.Tick, textarea.Blink, start, listenChanges(m.changes))
}

// listenChanges waits for the next session change.
func listenChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return sessionChangedMsg{}
	}
}

func toastCmd(text string) tea.Cmd {
	return func() tea.Msg { return uitk.ShowToastMsg{Message: text} }
}

func warnToastCmd(text string) tea.Cmd {
	return func() tea.Msg { return uitk.ShowToastMsg{Message: text, Warn: true} }
}

func uploadFilesCmd(ctx context.Context, up uploader, paths []string) tea.Cmd {
	return func() tea.Msg {
		files, err := uploadAttachments(ctx, up, paths)
		return uploadDoneMsg{files: files, err: err}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		cmd   tea.Cmd
		cmds  []tea.Cmd
	)

	// While the overlay is open it owns the keyboard.
	if key, ok := msg.(tea.KeyMsg); ok && m.quickMenu.IsActive() && key.String() != "ctrl+c" {
		if key.String() == "ctrl+p" {
			m.quickMenu.Close()
			m.syncMenuFocus()
			return m, nil
		}
		m.quickMenu, cmd = m.quickMenu.Update(msg)
		m.syncMenuFocus()
		return m, cmd
	}

	m.quickMenu, cmd = m.quickMenu.Update(msg)
	cmds = append(cmds, cmd)
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.toast, cmd = m.toast.Update(msg)
	cmds = append(cmds, cmd, tiCmd, vpCmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.termHeight = msg.Height
		newWidth := msg.Width - 2
		if newWidth < 10 {
			newWidth = 10
		}
		m.textarea.SetWidth(newWidth)
		m.resizeViewport()
		m.refreshViewportBottom()

	case sessionChangedMsg:
		m.sync()
		cmds = append(cmds, listenChanges(m.changes))

	case uploadDoneMsg:
		m.uploading = false
		if msg.err != nil {
			m.addError(fmt.Sprintf("Upload failed: %v", msg.err))
		} else {
			m.sess.Attach(msg.files)
			names := make([]string, len(msg.files))
			for i, f := range msg.files {
				names[i] = f.Name
			}
			m.addNotice(fmt.Sprintf("Attached %s", strings.Join(names, ", ")))
		}
		m.sync()

	case uitk.SwitchModelMsg:
		if err := m.sess.SwitchModel(msg.ModelID); err != nil {
			m.addError(err.Error())
		} else {
			cmds = append(cmds, toastCmd("Model: "+session.ModelName(msg.ModelID)))
		}
		m.sync()

	case configChangedMsg:
		text := "Config reloaded"
		if msg.urlChanged {
			text = "Config reloaded, next connect uses " + hostOf(msg.serverURL)
			m.serverHost = hostOf(msg.serverURL)
		}
		cmds = append(cmds, toastCmd(text))

	case configErrorMsg:
		m.addError(fmt.Sprintf("Config not applied: %v", msg.err))
		m.refreshViewportBottom()

	case utils.TUIMessageMsg:
		text := strings.TrimRight(utils.FormatMessage(msg.Message), "\n")
		if text != "" {
			m.notices = append(m.notices, notice{
				after: len(m.snap.Messages),
				text:  text,
				isErr: msg.Message.Type == utils.ErrorMessage,
			})
			m.refreshViewportBottom()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.status = "👋 Bye."
			return m, tea.Quit

		case "ctrl+k":
			next := m.sess.CycleModel()
			m.sync()
			return m, tea.Batch(append(cmds, toastCmd("Model: "+next.Name))...)

		case "ctrl+l":
			m.sess.ClearError()
			m.sync()

		case "ctrl+p":
			m.openMenu()
			return m, tea.Batch(cmds...)

		case "up":
			if m.histIndex > 0 {
				m.histIndex--
				m.textarea.SetValue(m.history[m.histIndex])
				m.textarea.CursorEnd()
			}

		case "down":
			if m.histIndex < len(m.history)-1 {
				m.histIndex++
				m.textarea.SetValue(m.history[m.histIndex])
				m.textarea.CursorEnd()
			} else {
				m.histIndex = len(m.history)
				m.textarea.SetValue("")
			}

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				break
			}
			m.textarea.SetValue("")
			m.history = append(m.history, input)
			m.histIndex = len(m.history)

			if strings.HasPrefix(input, "/") {
				var quit bool
				var c tea.Cmd
				m, c, quit = m.runSlash(input)
				if quit {
					return m, tea.Quit
				}
				cmds = append(cmds, c)
				break
			}
			if !m.sess.SendChat(input) {
				m.addError("Not connected. The message was saved but not sent.")
			}
			m.sync()
		}
	}

	return m, tea.Batch(cmds...)
}

// runSlash handles one slash command. It reports whether the UI should quit.
func (m chatModel) runSlash(input string) (chatModel, tea.Cmd, bool) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/help":
		var b strings.Builder
		b.WriteString("Commands:")
		for _, c := range chatCommands {
			fmt.Fprintf(&b, "\n  %-16s %s", c.Command, c.Description)
		}
		b.WriteString("\n\nHotkeys:\n  Ctrl+K  Cycle models\n  Ctrl+L  Dismiss the error\n  Ctrl+P  Quick menu\n  Up/Down Input history")
		m.addNotice(b.String())

	case "/model":
		if len(fields) < 2 {
			var b strings.Builder
			fmt.Fprintf(&b, "Current model: %s\n\nAvailable models:", session.ModelName(m.snap.Model))
			for _, mod := range session.Models {
				marker := " "
				if mod.ID == m.snap.Model {
					marker = "*"
				}
				fmt.Fprintf(&b, "\n %s %-10s %s", marker, mod.ID, mod.Name)
			}
			m.addNotice(b.String())
			break
		}
		if err := m.sess.SwitchModel(fields[1]); err != nil {
			m.addError(err.Error())
			break
		}
		m.sync()
		return m, toastCmd("Model: " + session.ModelName(fields[1])), false

	case "/attach":
		if len(fields) < 2 {
			m.addNotice("Usage: /attach <path> [path...]")
			break
		}
		if m.uploading {
			m.addNotice("An upload is already running.")
			break
		}
		m.uploading = true
		m.refreshViewportBottom()
		return m, uploadFilesCmd(m.ctx, m.up, fields[1:]), false

	case "/detach":
		if len(fields) < 2 {
			m.sess.ClearContextFiles()
			m.addNotice("All attachments removed.")
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			m.addError("Usage: /detach [n]")
			break
		}
		if err := m.sess.RemoveAttachment(n - 1); err != nil {
			m.addError(err.Error())
			break
		}
		m.addNotice(fmt.Sprintf("Removed attachment #%d.", n))

	case "/files":
		m.snap = m.sess.Snapshot()
		if len(m.snap.Attachments) == 0 {
			m.addNotice("No files attached.")
			break
		}
		var b strings.Builder
		b.WriteString("Attached files:")
		for i, f := range m.snap.Attachments {
			fmt.Fprintf(&b, "\n  %d. %s (%s)", i+1, f.Name, utils.FormatBytes(f.Size))
		}
		m.addNotice(b.String())

	case "/clear":
		if err := m.sess.ClearChat(); err != nil {
			m.addError(fmt.Sprintf("Failed to clear: %v", err))
			break
		}
		m.notices = nil
		m.addNotice("Conversation cleared.")

	case "/reconnect":
		m.link.Reconnect()
		m.addNotice("Reconnecting...")

	case "/copy":
		reply, ok := lastReply(m.snap.Messages)
		if !ok {
			m.addNotice("Nothing to copy yet.")
			break
		}
		if err := copyToClipboard(reply); err != nil {
			return m, warnToastCmd("Clipboard unavailable"), false
		}
		return m, toastCmd("Copied last reply"), false

	case "/menu":
		m.openMenu()

	case "/exit", "/quit":
		m.status = "👋 Bye."
		return m, nil, true

	default:
		m.addError(fmt.Sprintf("Unknown command %s. Type /help for commands.", fields[0]))
	}
	m.sync()
	return m, nil, false
}

func lastReply(msgs []history.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == history.KindAssistant {
			return msgs[i].Body, true
		}
	}
	return "", false
}

func (m *chatModel) openMenu() {
	items := make([]uitk.ModelItem, len(session.Models))
	for i, mod := range session.Models {
		items[i] = uitk.ModelItem{ID: mod.ID, Name: mod.Name}
	}
	m.quickMenu.SetModels(items, m.snap.Model)
	m.quickMenu, _ = m.quickMenu.Update(tea.WindowSizeMsg{Width: m.width, Height: m.termHeight})
	m.quickMenu.Toggle()
	m.syncMenuFocus()
}

func (m *chatModel) syncMenuFocus() {
	if m.quickMenu.IsActive() && !m.menuActive {
		m.textarea.Blur()
		m.menuActive = true
	}
	if !m.quickMenu.IsActive() && m.menuActive {
		m.textarea.Focus()
		m.menuActive = false
	}
}

func (m *chatModel) addNotice(text string) {
	m.notices = append(m.notices, notice{after: len(m.snap.Messages), text: text})
}

func (m *chatModel) addError(text string) {
	m.notices = append(m.notices, notice{after: len(m.snap.Messages), text: text, isErr: true})
}

// sync re-reads the session and redraws the transcript.
func (m *chatModel) sync() {
	m.snap = m.sess.Snapshot()
	// Notices past the end belong to a log that was cleared.
	for i := range m.notices {
		if m.notices[i].after > len(m.snap.Messages) {
			m.notices[i].after = len(m.snap.Messages)
		}
	}
	m.resizeViewport()
	m.refreshViewportBottom()
}

func (m *chatModel) resizeViewport() {
	if m.termHeight == 0 {
		return
	}
	h := m.termHeight - lipgloss.Height(renderInfoBar(*m)) - lipgloss.Height(renderChatInput(*m))
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

func renderTranscript(m chatModel) string {
	var b strings.Builder
	base := lipgloss.NewStyle()
	next := 0
	writeNotices := func(upto int) {
		for ; next < len(m.notices) && m.notices[next].after <= upto; next++ {
			n := m.notices[next]
			style := base.Foreground(lipgloss.Color("#666666"))
			if n.isErr {
				style = base.Foreground(lipgloss.Color("9"))
			}
			b.WriteString(style.Render(n.text) + "\n\n")
		}
	}

	for i, msg := range m.snap.Messages {
		writeNotices(i)
		var line string
		switch msg.Kind {
		case history.KindUser:
			style := base.Foreground(lipgloss.Color("#ccc"))
			line = style.Bold(true).Render(userPrompt) + style.Render(msg.Body)
		case history.KindAssistant:
			label := "🤖"
			if msg.ModelLabel != "" {
				label += " " + session.ModelName(msg.ModelLabel) + ":"
			}
			line = base.Foreground(lipgloss.Color("11")).Render(label) + " " + msg.Body
		case history.KindThinking:
			line = base.Faint(true).Italic(true).Render(thinkingPrompt + " " + msg.Body)
		case history.KindSystem:
			line = base.Foreground(lipgloss.Color("39")).Render(systemPrompt + " " + msg.Body)
		}
		b.WriteString(line + "\n\n")
	}
	writeNotices(len(m.snap.Messages))
	return b.String()
}

func renderChatContent(m chatModel) string {
	var b strings.Builder
	b.WriteString(renderTranscript(m))
	if m.snap.Loading {
		text := m.spin.View() + "Thinking..."
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Width(max(m.width-2, 10)).Render(text) + gap)
	}
	if m.uploading {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(m.spin.View()+"Uploading...") + gap)
	}
	return b.String()
}

func (m *chatModel) setViewportContent() {
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(renderChatContent(*m)))
}

func (m *chatModel) refreshViewportBottom() {
	m.setViewportContent()
	m.viewport.GotoBottom()
}

func renderChatInput(m chatModel) string {
	var b strings.Builder

	if m.snap.Err != "" {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Width(max(m.width-2, 10))
		b.WriteString(errStyle.Render("❌ " + m.snap.Err + "  (Ctrl+L to dismiss)"))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
	}

	cbStyle := lipgloss.NewStyle().
		MarginBottom(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63"))
	b.WriteString(cbStyle.Render(m.textarea.View()))

	b.WriteString("\n")
	helpText := "/help for commands | Up/Down: history | Ctrl+K: cycle models | Ctrl+P: menu"
	b.WriteString(lipgloss.NewStyle().Faint(true).Width(max(m.width-2, 10)).Render(helpText))
	b.WriteString("\n")
	return b.String()
}

func renderInfoBar(m chatModel) string {
	state := m.snap.Connection.String()
	files := ""
	if n := len(m.snap.Attachments); n > 0 {
		files = fmt.Sprintf(" | Files: %d", n)
	}
	statusLine := fmt.Sprintf("💬 webchat | Model: %s%s | %s %s | %s",
		session.ModelName(m.snap.Model), files, utils.IconForStatus(state), state, m.serverHost)

	bg := "#28a745"
	switch m.snap.Connection {
	case conn.StateConnecting:
		bg = "#b58900"
	case conn.StateDisconnected, conn.StateError:
		bg = "#dc3545"
	}
	style := lipgloss.NewStyle().
		Width(m.width).
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color("#ffffff")).
		PaddingLeft(1).
		PaddingRight(1)

	if m.width > 5 && lipgloss.Width(statusLine) > m.width-2 {
		runes := []rune(statusLine)
		if limit := m.width - 5; limit < len(runes) {
			statusLine = string(runes[:limit]) + "..."
		}
	}
	return style.Render(statusLine)
}

func (m chatModel) View() string {
	var b strings.Builder
	if m.quickMenu.IsActive() {
		dim := lipgloss.NewStyle().Faint(true)
		b.WriteString(dim.Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(m.quickMenu.View())
		shadow := m
		shadow.textarea.Blur()
		b.WriteString(dim.Render(renderChatInput(shadow)))
	} else {
		b.WriteString(m.viewport.View())
		b.WriteString(renderChatInput(m))
	}
	b.WriteString(renderInfoBar(m))

	if v := m.toast.View(); v != "" {
		b.WriteString("\n")
		b.WriteString(v)
	}
	return b.String()
}
