package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer

	l, err := New("venueweather", "info", &buf)
	require.NoError(t, err)

	l.Info("stored observations", zap.Int("rows", 24))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "stored observations", entry["msg"])
	assert.Equal(t, "venueweather", entry["app_name"])
	assert.Equal(t, float64(24), entry["rows"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	l, err := New("venueweather", "warn", &buf)
	require.NoError(t, err)

	l.Info("dropped")
	require.NoError(t, l.Sync())

	assert.Empty(t, buf.String())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("venueweather", "loud")
	assert.Error(t, err)
}
