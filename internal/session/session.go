// Package session is the client's working state on top of the connection:
// the message log, the attached files, the selected model and the
// transient error and loading flags. It turns user intents into commands
// and inbound frames into log entries.
package session

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"webchat-cli/internal/conn"
	"webchat-cli/internal/history"
	"webchat-cli/internal/wire"
)

// Attachment is a file in the conversation context.
type Attachment struct {
	Name string
	Body string
	Size int64
}

// Sender transmits an encoded frame, reporting whether it was written.
type Sender interface {
	Send(data []byte) bool
}

// Metrics is the subset of instrumentation the session reports to.
type Metrics interface {
	CommandSent(commandType string)
	CommandDropped(commandType string)
}

// Snapshot is an immutable view for rendering.
type Snapshot struct {
	Messages    []history.Message
	Attachments []Attachment
	Model       string
	Loading     bool
	Err         string
	Connection  conn.State
}

// Connected reports whether the connection is usable.
func (s Snapshot) Connected() bool { return s.Connection == conn.StateConnected }

// Options configures a Session.
type Options struct {
	Logger  *zap.Logger
	Metrics Metrics
	// Model is the initial selection; empty or unknown means DefaultModel.
	Model string
}

// Session is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	attachments []Attachment
	model       string
	loading     bool
	err         string
	connState   conn.State
	lastConnErr string

	subMu sync.Mutex
	subs  []func()

	store    *history.Store
	sender   Sender
	clientID string
	log      *zap.Logger
	metrics  Metrics
}

// New builds a session. store should already be loaded.
func New(store *history.Store, sender Sender, clientID string, opts Options) *Session {
	s := &Session{
		model:     DefaultModel,
		connState: conn.StateConnecting,
		store:     store,
		sender:    sender,
		clientID:  clientID,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if ValidateModel(opts.Model) == nil {
		s.model = opts.Model
	}
	return s
}

// ClientID returns the identity stamped on outbound commands.
func (s *Session) ClientID() string { return s.clientID }

// Subscribe registers fn to run after every change.
func (s *Session) Subscribe(fn func()) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

func (s *Session) changed() {
	s.subMu.Lock()
	subs := append([]func(){}, s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages:    s.store.Messages(),
		Attachments: append([]Attachment(nil), s.attachments...),
		Model:       s.model,
		Loading:     s.loading,
		Err:         s.err,
		Connection:  s.connState,
	}
}

func (s *Session) send(cmd wire.Command) bool {
	data, err := wire.Encode(cmd, s.clientID)
	if err != nil {
		s.log.Error("encode command", zap.String("type", string(cmd.Type)), zap.Error(err))
		return false
	}
	ok := s.sender.Send(data)
	if ok {
		s.log.Debug("command sent", zap.String("type", string(cmd.Type)), zap.Int("bytes", len(data)))
	} else {
		s.log.Debug("command dropped, socket not open", zap.String("type", string(cmd.Type)))
	}
	if s.metrics != nil {
		if ok {
			s.metrics.CommandSent(string(cmd.Type))
		} else {
			s.metrics.CommandDropped(string(cmd.Type))
		}
	}
	return ok
}

// SendChat logs text as a user message, sends it and clears the attachments.
// Blank text is ignored. The attachments are cleared even when the frame
// was dropped. It reports whether the frame was written.
func (s *Session) SendChat(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.store.Append(history.Entry{Kind: history.KindUser, Body: text})
	sent := s.send(wire.Chat(text))

	s.mu.Lock()
	s.attachments = nil
	s.mu.Unlock()
	s.changed()
	return sent
}

// SetContextFiles replaces the attachments. A set_context command is sent
// only for a non-empty list.
func (s *Session) SetContextFiles(files []Attachment) bool {
	s.mu.Lock()
	s.attachments = append([]Attachment(nil), files...)
	s.mu.Unlock()

	sent := false
	if len(files) > 0 {
		refs := make([]wire.FileRef, len(files))
		for i, f := range files {
			refs[i] = wire.FileRef{Name: f.Name, Content: f.Body}
		}
		sent = s.send(wire.SetContext(refs))
	}
	s.changed()
	return sent
}

// Attach adds files after the current attachments.
func (s *Session) Attach(files []Attachment) bool {
	s.mu.Lock()
	all := append(append([]Attachment(nil), s.attachments...), files...)
	s.mu.Unlock()
	return s.SetContextFiles(all)
}

// RemoveAttachment drops the attachment at index i. The remaining files are
// re-sent as the context, or the context is cleared when none remain.
func (s *Session) RemoveAttachment(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.attachments) {
		n := len(s.attachments)
		s.mu.Unlock()
		return fmt.Errorf("no attachment #%d (have %d)", i+1, n)
	}
	rest := make([]Attachment, 0, len(s.attachments)-1)
	rest = append(rest, s.attachments[:i]...)
	rest = append(rest, s.attachments[i+1:]...)
	s.mu.Unlock()

	if len(rest) > 0 {
		s.SetContextFiles(rest)
	} else {
		s.ClearContextFiles()
	}
	return nil
}

// ClearContextFiles empties the attachments and tells the backend.
func (s *Session) ClearContextFiles() bool {
	s.mu.Lock()
	s.attachments = nil
	s.mu.Unlock()
	sent := s.send(wire.ClearContext())
	s.changed()
	return sent
}

// SwitchModel selects id and tells the backend. Unknown ids are rejected.
func (s *Session) SwitchModel(id string) error {
	if err := ValidateModel(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.model = id
	s.mu.Unlock()
	s.send(wire.SwitchModel(id))
	s.changed()
	return nil
}

// CycleModel switches to the next model in picker order.
func (s *Session) CycleModel() Model {
	s.mu.Lock()
	next := NextModel(s.model)
	s.mu.Unlock()
	s.SwitchModel(next.ID)
	return next
}

// ClearError drops the transient error text.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	s.changed()
}

// ClearChat empties the message log.
func (s *Session) ClearChat() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.changed()
	return nil
}

// HandleFrame routes one inbound frame.
func (s *Session) HandleFrame(ev wire.Event) {
	switch {
	case ev.Unknown:
		return
	case ev.Legacy:
		s.store.Append(history.Entry{Kind: history.KindAssistant, Body: ev.Content})
	default:
		switch ev.Type {
		case wire.EventResponse:
			s.store.Append(history.Entry{Kind: history.KindAssistant, Body: ev.Content, ModelLabel: ev.Model})
		case wire.EventThinking:
			s.store.Append(history.Entry{Kind: history.KindThinking, Body: ev.Content})
		case wire.EventSystem:
			s.store.Append(history.Entry{Kind: history.KindSystem, Body: ev.Content})
		case wire.EventError:
			s.mu.Lock()
			s.err = ev.Content
			s.mu.Unlock()
		case wire.EventLoading:
			s.mu.Lock()
			s.loading = ev.Loading
			s.mu.Unlock()
		default:
			return
		}
	}
	s.changed()
}

// OnStatus follows the connection. A new connect attempt clears the error
// text; a new connection error replaces it. Each time the connection opens
// with a non-default model selected, the selection is re-sent.
func (s *Session) OnStatus(st conn.Status) {
	s.mu.Lock()
	opened := st.State == conn.StateConnected && s.connState != conn.StateConnected
	model := s.model
	if st.State == conn.StateConnecting && s.connState != conn.StateConnecting {
		s.err = ""
	}
	if st.Err != "" && st.Err != s.lastConnErr {
		s.err = st.Err
	}
	if st.State != conn.StateConnected {
		s.loading = false
	}
	s.lastConnErr = st.Err
	s.connState = st.State
	s.mu.Unlock()
	if opened && model != DefaultModel {
		s.send(wire.SwitchModel(model))
	}
	s.changed()
}
