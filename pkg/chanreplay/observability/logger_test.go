package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *testHandler) lastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds vertex and attempt", func(t *testing.T) {
		h := newTestHandler()
		enriched := EnrichLogger(slog.New(h), "v-1", "attempt-1")
		enriched.Info("test message")

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "v-1", record["vertex"])
		assert.Equal(t, "attempt-1", record["attempt"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "v", "a"))
	})
}

func TestLogReplayStart(t *testing.T) {
	h := newTestHandler()
	LogReplayStart(slog.New(h), "v-1", "a-1", true)

	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "replaying checkpoint", record["msg"])
	assert.Equal(t, true, record["complete"])
}

func TestLogReplaySuperseded(t *testing.T) {
	h := newTestHandler()
	LogReplaySuperseded(slog.New(h), "v-1", "old", "new")

	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "old", record["previous_attempt"])
	assert.Equal(t, "new", record["attempt"])
}

func TestLogReplayFinished(t *testing.T) {
	t.Run("success logs info", func(t *testing.T) {
		h := newTestHandler()
		LogReplayFinished(slog.New(h), "v-1", "a-1", nil)

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "replay finished", record["msg"])
	})

	t.Run("failure logs error", func(t *testing.T) {
		h := newTestHandler()
		LogReplayFinished(slog.New(h), "v-1", "a-1", errors.New("corrupt segment"))

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "corrupt segment", record["error"])
	})
}

func TestLogCheckpointRemoved(t *testing.T) {
	t.Run("clean removal logs debug", func(t *testing.T) {
		h := newTestHandler()
		LogCheckpointRemoved(slog.New(h), "v-1", []string{"final"}, nil)

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
	})

	t.Run("failures log warn", func(t *testing.T) {
		h := newTestHandler()
		LogCheckpointRemoved(slog.New(h), "v-1", nil, errors.New("permission denied"))

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "permission denied", record["error"])
	})
}

func TestLogWarnings(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogCancelError(logger, "v-1", "old", context.DeadlineExceeded)
	record := h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "old", record["previous_attempt"])

	LogHistoryError(logger, "v-1", "append", errors.New("disk full"))
	record = h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "append", record["operation"])

	LogStaleCompletion(logger, "v-1", "old")
	record = h.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogReplayStart(nil, "v", "a", false)
		LogReplaySuperseded(nil, "v", "a", "b")
		LogReplayFinished(nil, "v", "a", errors.New("x"))
		LogStaleCompletion(nil, "v", "a")
		LogCancelError(nil, "v", "a", errors.New("x"))
		LogCheckpointRemoved(nil, "v", nil, nil)
		LogHistoryError(nil, "v", "append", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5*time.Millisecond)
}
