package integration

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/engine"
)

// MockObserver is a test observer that records events
type MockObserver struct {
	mu     sync.Mutex
	Events []engine.Event
}

func (m *MockObserver) OnEvent(event engine.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *MockObserver) types() []engine.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.EventType, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "integration.db")
}

func openEngine(t *testing.T, path string) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(context.Background(), engine.Options{
		Path:   path,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.NilError(t, err)
	return eng
}
