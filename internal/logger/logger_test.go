package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParse(t *testing.T) {
	c, err := Parse("", "")
	require.NoError(t, err)
	require.Equal(t, NewConfig(), c)

	c, err = Parse("json", "debug")
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, c.Level)

	_, err = Parse("json", "loud")
	require.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := Config{Format: "json", Level: zapcore.InfoLevel}.New(&buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Synced catalog", zap.Int("count", 3))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "Synced catalog", entry["msg"])
	require.Equal(t, float64(3), entry["count"])
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := Config{Format: "xml"}.New(&bytes.Buffer{})
	require.Error(t, err)
}
