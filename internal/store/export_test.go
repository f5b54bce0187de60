package store

import (
	"bytes"
	"time"

	"github.com/rs/zerolog"
)

// Exported for testing.

// NewMemoryStoreForTest exports the memory store constructor for testing.
var NewMemoryStoreForTest = newMemoryStore

// ParseBindAddrForTest exports parseBindAddr for testing.
var ParseBindAddrForTest = parseBindAddr

// MemoryStoreT exports the memory store type for testing.
type MemoryStoreT = memoryStore

// SetClock replaces the memory store clock so tests can control expiry
// without sleeping.
func (m *memoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// NewTestLogger creates a test logger at the given level, returning
// the buffer (for inspecting output) and the logger pointer.
func NewTestLogger(level zerolog.Level) (*bytes.Buffer, *zerolog.Logger) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(level)
	return &buf, &logger
}
