// Package storage provides durable string-keyed records for client state
// (the message log and the client identity).
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("storage: key not found")

// Well-known keys.
const (
	KeyMessages = "web_chat_messages"
	KeyUserID   = "web_chat_user_id"
)

// Backend stores string values under string keys.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Kind names a Backend implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindPebble Kind = "pebble"
	KindMemory Kind = "memory"
)

// Open opens the backend of the given kind rooted at dir.
func Open(kind Kind, dir string) (Backend, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindFile, "":
		return NewFileBackend(filepath.Join(dir, "storage"))
	case KindPebble:
		return NewPebbleBackend(filepath.Join(dir, "storage.pebble"))
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use file, pebble or memory)", kind)
	}
}

// MemoryBackend keeps records in memory only.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
