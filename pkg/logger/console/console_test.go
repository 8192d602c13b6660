package console

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{JSON: true, Output: &buf, Prefix: "rulegraph"})

	l.Info("[Builder] built graph", "nodes", 4)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[Builder] built graph", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line["prefix"], "rulegraph")
	assert.EqualValues(t, 4, line["nodes"])
}

func TestDebugLevel(t *testing.T) {
	var quiet, verbose bytes.Buffer
	NewConsoleLogger(ConsoleLoggerParams{Output: &quiet}).Debug("hidden")
	NewConsoleLogger(ConsoleLoggerParams{Output: &verbose, Debug: true}).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "shown")
}
