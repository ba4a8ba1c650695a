package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With(String("job_url", "https://example.com"))

	log.Warn("required field not found", String("field", "email"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	ctx := entry.ContextMap()
	assert.Equal(t, "https://example.com", ctx["job_url"])
	assert.Equal(t, "email", ctx["field"])
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	l.Debug("hello", Int("n", 1))
}
