package history

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"webchat-cli/internal/storage"
)

// flakyBackend wraps a memory backend and fails writes on demand.
type flakyBackend struct {
	*storage.MemoryBackend
	failSet    bool
	failDelete bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyBackend) Set(key, value string) error {
	if f.failSet {
		return errDiskFull
	}
	return f.MemoryBackend.Set(key, value)
}

func (f *flakyBackend) Delete(key string) error {
	if f.failDelete {
		return errDiskFull
	}
	return f.MemoryBackend.Delete(key)
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := NewStore(backend, nil)
	s.Load()

	entries := []Entry{
		{Kind: KindUser, Body: "hi"},
		{Kind: KindThinking, Body: "considering"},
		{Kind: KindAssistant, Body: "hello", ModelLabel: "flash"},
		{Kind: KindSystem, Body: "context set"},
	}
	for _, e := range entries {
		s.Append(e)
	}
	want := s.Messages()

	reloaded := NewStore(backend, nil)
	reloaded.Load()
	assert.Equal(t, want, reloaded.Messages())
	require.Len(t, reloaded.Messages(), 4)
	assert.Equal(t, "flash", reloaded.Messages()[2].ModelLabel)
}

func TestAppendAssignsUniqueIDsAndTimestamps(t *testing.T) {
	s := NewStore(storage.NewMemoryBackend(), nil)
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }

	idPattern := regexp.MustCompile(`^1700000000000-[0-9a-z]{7}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		msg := s.Append(Entry{Kind: KindUser, Body: "x"})
		assert.Regexp(t, idPattern, msg.ID)
		assert.Equal(t, fixed.UnixMilli(), msg.CreatedAt)
		assert.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
	}
}

func TestClearThenLoadIsEmpty(t *testing.T) {
	backend := storage.NewMemoryBackend()
	s := NewStore(backend, nil)
	s.Append(Entry{Kind: KindUser, Body: "one"})
	s.Append(Entry{Kind: KindAssistant, Body: "two"})

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Messages())

	reloaded := NewStore(backend, nil)
	reloaded.Load()
	assert.Empty(t, reloaded.Messages())
}

func TestClearKeepsLogWhenPersistFails(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: storage.NewMemoryBackend()}
	s := NewStore(backend, nil)
	s.Append(Entry{Kind: KindUser, Body: "keep me"})

	backend.failDelete = true
	err := s.Clear()
	require.ErrorIs(t, err, errDiskFull)
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "keep me", s.Messages()[0].Body)
}

func TestAppendSurvivesPersistFailure(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: storage.NewMemoryBackend(), failSet: true}
	s := NewStore(backend, nil)

	msg := s.Append(Entry{Kind: KindUser, Body: "still here"})
	assert.Equal(t, []Message{msg}, s.Messages())

	_, err := backend.Get(storage.KeyMessages)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPersistFailureIsLoggedAsError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	backend := &flakyBackend{MemoryBackend: storage.NewMemoryBackend(), failSet: true}
	s := NewStore(backend, zap.New(core))

	s.Append(Entry{Kind: KindUser, Body: "hello"})
	entries := logs.FilterMessage("failed to persist message log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, errDiskFull.Error(), entries[0].ContextMap()["error"])
}

func TestLoadTreatsBadDataAsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"corrupt json", `[{"id":`},
		{"wrong shape", `{"messages":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			require.NoError(t, backend.Set(storage.KeyMessages, tt.raw))

			s := NewStore(backend, nil)
			s.Load()
			assert.Empty(t, s.Messages())
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestLoadReadsOriginalFormat(t *testing.T) {
	backend := storage.NewMemoryBackend()
	raw := `[{"id":"1717000000000-abc1234","type":"model","content":"hey","model":"pro-2.5","timestamp":1717000000000}]`
	require.NoError(t, backend.Set(storage.KeyMessages, raw))

	s := NewStore(backend, nil)
	s.Load()
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, KindAssistant, msgs[0].Kind)
	assert.Equal(t, "pro-2.5", msgs[0].ModelLabel)
	assert.Equal(t, int64(1717000000000), msgs[0].Time().UnixMilli())
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewStore(storage.NewMemoryBackend(), nil)
	s.Append(Entry{Kind: KindUser, Body: "original"})

	msgs := s.Messages()
	msgs[0].Body = "mutated"
	assert.Equal(t, "original", s.Messages()[0].Body)
}
