package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("WARN", "text")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New("verbose", "json")
	assert.Error(t, err)
}

func TestAuditLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	AuditLog(zap.New(core), AuditEvent{
		UserID:   "u-1",
		Action:   "otp_failed",
		Resource: "user",
		Metadata: map[string]interface{}{"ip_address": "10.0.0.1"},
	})

	entries := logs.FilterMessage("audit_log").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "otp_failed", fields["action"])
	assert.Equal(t, "failure", fields["result"])
	assert.Equal(t, "10.0.0.1", fields["ip_address"])
}
