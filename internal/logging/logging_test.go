package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", zap.Int("batch", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["batch"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "debug", "console")
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewErrors(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
