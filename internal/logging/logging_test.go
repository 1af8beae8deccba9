package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelFatal, ParseLevel("fatal"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestStructuredOutputCarriesServiceAttr(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human, slog.LevelDebug)

	logger := ForService("engine")
	require.NotNil(t, logger)
	logger.Info("stream opened", "sample_rate", 48000)

	var record map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &record))
	assert.Equal(t, "engine", record["service"])
	assert.Equal(t, "stream opened", record["msg"])
	assert.EqualValues(t, 48000, record["sample_rate"])
}

func TestCustomLevelNames(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human, LevelTrace)

	Trace("probing device")
	assert.Contains(t, structured.String(), `"TRACE"`)
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pcmflow.log")

	logger, closer, err := NewFileLogger(path, "test", slog.LevelInfo)
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer())

	assert.FileExists(t, path)
}
