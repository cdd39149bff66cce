package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// MessageType represents the type of output message
type MessageType int

const (
	InfoMessage MessageType = iota
	WarningMessage
	ErrorMessage
	SuccessMessage
	ProgressMessage
	DebugMessage
)

// OutputMessage represents a message to be displayed
type OutputMessage struct {
	Type    MessageType
	Content string
	Writer  io.Writer // used outside TUI mode
	NoEmoji bool
}

// TUIMessageMsg carries an output message into a running Bubble Tea program.
type TUIMessageMsg struct {
	Message OutputMessage
}

// OutputManager routes CLI output either to the terminal or, while the chat
// TUI runs, into the program as TUIMessageMsg values.
type OutputManager struct {
	mu            sync.RWMutex
	tuiProgram    *tea.Program
	inTUIMode     bool
	messageQueue  []OutputMessage
	disableEmojis bool
	stdout        io.Writer
	stderr        io.Writer
}

var outputManager = &OutputManager{
	disableEmojis: !term.IsTerminal(int(os.Stdout.Fd())),
}

// SetTUIMode routes output to program and flushes anything queued so far.
func SetTUIMode(program *tea.Program) {
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.tuiProgram = program
	outputManager.inTUIMode = true

	for _, msg := range outputManager.messageQueue {
		if program != nil {
			program.Send(TUIMessageMsg{Message: msg})
		}
	}
	outputManager.messageQueue = nil
}

// ClearTUIMode returns to direct terminal output.
func ClearTUIMode() {
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.tuiProgram = nil
	outputManager.inTUIMode = false
	outputManager.messageQueue = nil
}

// SetEmojiEnabled controls whether emoji prefixes are added. Emoji are off by
// default when stdout is not a terminal.
func SetEmojiEnabled(enabled bool) {
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.disableEmojis = !enabled
}

// EmojiEnabled reports whether emoji prefixes are added.
func EmojiEnabled() bool {
	outputManager.mu.RLock()
	defer outputManager.mu.RUnlock()
	return !outputManager.disableEmojis
}

// SetOutputWriters redirects direct-mode output. Nil restores the process
// stdout/stderr.
func SetOutputWriters(stdout, stderr io.Writer) {
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.stdout = stdout
	outputManager.stderr = stderr
}

// Stdout returns the writer used for regular command output.
func Stdout() io.Writer {
	outputManager.mu.RLock()
	defer outputManager.mu.RUnlock()
	if outputManager.stdout != nil {
		return outputManager.stdout
	}
	return os.Stdout
}

func stderr() io.Writer {
	outputManager.mu.RLock()
	defer outputManager.mu.RUnlock()
	if outputManager.stderr != nil {
		return outputManager.stderr
	}
	return os.Stderr
}

func sendMessage(msgType MessageType, format string, args ...interface{}) {
	sendMessageWithOptions(msgType, false, format, args...)
}

func sendMessageWithOptions(msgType MessageType, noEmoji bool, format string, args ...interface{}) {
	msg := OutputMessage{
		Type:    msgType,
		Content: fmt.Sprintf(format, args...),
		Writer:  getDefaultWriter(msgType),
		NoEmoji: noEmoji || !EmojiEnabled(),
	}

	outputManager.mu.RLock()
	inTUI := outputManager.inTUIMode
	program := outputManager.tuiProgram
	outputManager.mu.RUnlock()

	switch {
	case inTUI && program != nil:
		program.Send(TUIMessageMsg{Message: msg})
	case inTUI:
		outputManager.mu.Lock()
		outputManager.messageQueue = append(outputManager.messageQueue, msg)
		outputManager.mu.Unlock()
	default:
		fmt.Fprint(msg.Writer, FormatMessage(msg))
	}
}

func getDefaultWriter(msgType MessageType) io.Writer {
	switch msgType {
	case ErrorMessage, WarningMessage, DebugMessage:
		return stderr()
	default:
		return Stdout()
	}
}

// OutputInfo sends an informational message
func OutputInfo(format string, args ...interface{}) {
	sendMessage(InfoMessage, format, args...)
}

// OutputInfoPlain sends an informational message without emoji
func OutputInfoPlain(format string, args ...interface{}) {
	sendMessageWithOptions(InfoMessage, true, format, args...)
}

// OutputWarning sends a warning message
func OutputWarning(format string, args ...interface{}) {
	sendMessage(WarningMessage, format, args...)
}

// OutputError sends an error message
func OutputError(format string, args ...interface{}) {
	sendMessage(ErrorMessage, format, args...)
}

// OutputSuccess sends a success message
func OutputSuccess(format string, args ...interface{}) {
	sendMessage(SuccessMessage, format, args...)
}

// OutputProgress sends a progress message. Carriage returns meant for
// in-place terminal updates are dropped inside the TUI.
func OutputProgress(format string, args ...interface{}) {
	outputManager.mu.RLock()
	inTUI := outputManager.inTUIMode
	outputManager.mu.RUnlock()
	if inTUI {
		format = strings.ReplaceAll(format, "\r", "")
	}
	sendMessage(ProgressMessage, format, args...)
}

// FormatMessage renders msg with its emoji prefix.
func FormatMessage(msg OutputMessage) string {
	if msg.NoEmoji {
		return msg.Content
	}

	var prefix string
	switch msg.Type {
	case InfoMessage:
		prefix = "ℹ️"
	case WarningMessage:
		prefix = "⚠️"
	case ErrorMessage:
		prefix = "❌"
	case SuccessMessage:
		prefix = "✅"
	case ProgressMessage:
		prefix = "🔄"
	case DebugMessage:
		prefix = "🐛"
	}

	return fmt.Sprintf("%s  %s", prefix, msg.Content)
}
