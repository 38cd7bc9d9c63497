package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Trace("hidden too")
	log.Info("shown", String("source_id", "VIO0101240001"))
	log.Warn("also shown", Int("count", 3))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "VIO0101240001", lines[0]["source_id"])
	assert.InDelta(t, 3, lines[1]["count"], 0)
}

func TestModuleLogger_NestedModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log := base.Module("review").Module("concerns").With(String("reviewer", "guard-1"))
	log.Info("status updated", Bool("final", false), Float64("ratio", 0.123456))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "review.concerns", lines[0]["module"])
	assert.Equal(t, "guard-1", lines[0]["reviewer"])
	assert.Equal(t, false, lines[0]["final"])
	assert.InDelta(t, 0.123, lines[0]["ratio"], 1e-9)
}

func TestModuleLogger_WithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("untraced")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[0][traceIDKey])
	assert.NotContains(t, lines[1], traceIDKey)
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)

	f = Error(io.ErrUnexpectedEOF)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), f.Value)
}

func TestCentralLogger_FileOutputAndModuleLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "campusfit.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"datastore": "trace"},
	})
	require.NoError(t, err)

	cl.Module("ingest").Debug("filtered by default level")
	cl.Module("ingest").Info("poll ok")
	cl.Module("datastore").Trace("sql query")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 2)
	assert.Equal(t, "ingest", lines[0]["module"])
	assert.Equal(t, "datastore", lines[1]["module"])
}

func TestNewCentralLogger_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGormLoggerAdapter_Trace(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	adapter := NewGormLoggerAdapter(NewSlogLogger(buf, LogLevelTrace, time.UTC), 500*time.Millisecond)

	sqlFn := func() (string, int64) { return "SELECT 1", 1 }
	adapter.Trace(context.Background(), time.Now(), sqlFn, nil)
	adapter.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
	adapter.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrInvalidData)
	adapter.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "sql query", lines[0]["msg"])
	assert.Equal(t, "sql query", lines[1]["msg"])
	assert.Equal(t, "query error", lines[2]["msg"])
	assert.Equal(t, "slow query", lines[3]["msg"])
}
