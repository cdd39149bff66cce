// Package identity resolves the opaque client id stamped on every outbound
// command.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webchat-cli/internal/storage"
)

// Resolve returns the stored client id, generating and storing a new UUID on
// first use. When storage is unusable the returned id is ephemeral and only
// lives as long as the process.
func Resolve(backend storage.Backend, log *zap.Logger) string {
	if log == nil {
		log = zap.NewNop()
	}

	stored, err := backend.Get(storage.KeyUserID)
	if err == nil && strings.TrimSpace(stored) != "" {
		return strings.TrimSpace(stored)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("failed to read client id, using an ephemeral one", zap.Error(err))
		return uuid.NewString()
	}

	id := uuid.NewString()
	if err := backend.Set(storage.KeyUserID, id); err != nil {
		log.Error("failed to store client id, using an ephemeral one", zap.Error(err))
	} else {
		log.Debug("generated client id", zap.String("user_id", id))
	}
	return id
}
