package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend stores records in an embedded pebble database.
type PebbleBackend struct {
	db *pebble.DB
}

// NewPebbleBackend opens (or creates) the database at path.
func NewPebbleBackend(path string) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleBackend{db: db}, nil
}

func (p *PebbleBackend) Get(key string) (string, error) {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	// value is only valid until closer.Close
	out := string(value)
	if err := closer.Close(); err != nil {
		return "", fmt.Errorf("failed to release %s: %w", key, err)
	}
	return out, nil
}

func (p *PebbleBackend) Set(key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (p *PebbleBackend) Delete(key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (p *PebbleBackend) Close() error {
	return p.db.Close()
}
