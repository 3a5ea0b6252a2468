package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestID(t *testing.T) {
	id, ok := ID(WithID(context.Background(), "6f1c2b9e-message"))
	assert.True(t, ok)
	assert.Equal(t, "6f1c2b9e-message", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok, "empty id counts as missing")
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf).With("component", "engine")

	logger.InfoContext(WithID(context.Background(), "msg-1"), "Applied message", "kind", "select")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=msg-1")
	assert.Contains(t, output, "component=engine")
	assert.Contains(t, output, "kind=select")
}

func TestHandler_OmitsCorrelationIDWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf).InfoContext(context.Background(), "Highlight clock stopped")

	assert.NotContains(t, buf.String(), "correlation_id")
}
