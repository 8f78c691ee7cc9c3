package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"component": "scheduler"})

	log.Info("dispatched", map[string]interface{}{"target": "33600000000@s.whatsapp.net"})
	log.WithError(errors.New("boom")).Error("dispatch failed", nil)
	log.Warn("notifier failed", map[string]interface{}{"error": errors.New("timeout")})

	entries := logs.All()
	assert.Len(t, entries, 3)

	assert.Equal(t, "dispatched", entries[0].Message)
	assert.Equal(t, "scheduler", entries[0].ContextMap()["component"])
	assert.Equal(t, "33600000000@s.whatsapp.net", entries[0].ContextMap()["target"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])

	assert.Equal(t, "timeout", entries[2].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("anything"))
}

func TestNew_InvalidOutputFallsBackToNop(t *testing.T) {
	l := New("info", "json", "/nonexistent-dir/sub/app.log")
	assert.NotNil(t, l)
	l.Info("does not panic")
}
