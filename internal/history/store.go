// Package history holds the ordered conversation log and mirrors it to
// durable storage after every change.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"webchat-cli/internal/storage"
)

// Kind classifies a message. The string values are the persisted names.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "model"
	KindSystem    Kind = "system"
	KindThinking  Kind = "thinking"
)

// Message is one immutable entry of the log.
type Message struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"type"`
	Body       string `json:"content"`
	ModelLabel string `json:"model,omitempty"`
	// CreatedAt is Unix milliseconds.
	CreatedAt int64 `json:"timestamp"`
}

// Time returns CreatedAt as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// Entry is the caller-supplied part of a message.
type Entry struct {
	Kind       Kind
	Body       string
	ModelLabel string
}

// Store is the append-only message log.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	backend  storage.Backend
	log      *zap.Logger
	now      func() time.Time
}

// NewStore returns an empty store over backend. Call Load to restore the
// persisted log.
func NewStore(backend storage.Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log, now: time.Now}
}

// Load replaces the in-memory log with the persisted one. Missing or corrupt
// data yields an empty log.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	raw, err := s.backend.Get(storage.KeyMessages)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error("failed to read message log", zap.Error(err))
		return
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.log.Error("discarding unreadable message log", zap.Error(err))
		return
	}
	s.messages = msgs
	s.log.Debug("message log loaded", zap.Int("count", len(msgs)))
}

// Append adds a message with a fresh id and the current time, then persists
// the full log. A persistence failure is logged; the in-memory log keeps
// the message.
func (s *Store) Append(e Entry) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	msg := Message{
		ID:         s.nextID(now),
		Kind:       e.Kind,
		Body:       e.Body,
		ModelLabel: e.ModelLabel,
		CreatedAt:  now.UnixMilli(),
	}
	s.messages = append(s.messages, msg)
	if err := s.persist(s.messages); err != nil {
		s.log.Error("failed to persist message log", zap.Error(err))
	}
	return msg
}

// Clear empties the log and its persisted copy. If the persisted copy cannot
// be removed the in-memory log is left as it was.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(storage.KeyMessages); err != nil {
		return fmt.Errorf("failed to clear message log: %w", err)
	}
	s.messages = nil
	return nil
}

// Messages returns a copy of the log in insertion order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) persist(msgs []Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode message log: %w", err)
	}
	return s.backend.Set(storage.KeyMessages, string(data))
}

// nextID returns "<unix-millis>-<7 base36 chars>", retrying on the unlikely
// collision with an existing id.
func (s *Store) nextID(now time.Time) string {
	for {
		id := strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomBase36(7)
		if !s.hasID(id) {
			return id
		}
	}
}

func (s *Store) hasID(id string) bool {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return true
		}
	}
	return false
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return string(b)
}
