package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := New("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"k": 2})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestComponentFieldAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "scheduler")
	l.Infow("schedule computed", map[string]any{"tasks": 3})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "schedule computed", line["message"])
	assert.Equal(t, float64(3), line["tasks"])
	assert.Equal(t, "info", line["level"])
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	require.NoError(t, SetLevel("warn"))

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "x")
	l.Infof("dropped")
	assert.Zero(t, buf.Len())
	l.Warnf("kept")
	assert.Contains(t, buf.String(), "kept")

	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel(""))
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Infof("nothing")
	l.Debugw("nothing", nil)
}
