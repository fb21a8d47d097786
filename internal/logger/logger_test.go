package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	c := Config{Format: FormatJSON, Level: zapcore.InfoLevel}
	log, err := c.New(&buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Job finished", zap.String("job_id", "abc"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Job finished", entry["msg"])
	assert.Equal(t, "abc", entry["job_id"])
	assert.True(t, strings.HasSuffix(entry["ts"].(string), "Z"), "timestamp should be UTC: %v", entry["ts"])
}

func TestConfig_UnknownFormat(t *testing.T) {
	c := Config{Format: "logfmt"}
	_, err := c.New(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_ConsoleAtDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	log := zap.NewNop()
	ctx := NewContextWithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
