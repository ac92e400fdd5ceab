package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)

	logger.Info("socket connected", "user_id", "u1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "socket connected", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
}

func TestNewLoggerDevIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("dev", &buf)

	logger.Debug("joined room", "room", "c1")

	assert.Contains(t, buf.String(), "joined room")
	assert.False(t, json.Valid(buf.Bytes()))
}
