package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSender_BodyOnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := LogSender{L: zap.New(core)}

	require.NoError(t, s.Send(context.Background(), "a@example.com", "subject", "secret-body"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "mail queued", entry.Message)
	for _, f := range entry.Context {
		assert.NotEqual(t, "secret-body", f.String)
	}
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "no-reply@example.com"})
	err := s.Send(context.Background(), "not an address", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail to")
}

func TestSMTPSender_Unreachable(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "no-reply@example.com"})
	err := s.Send(context.Background(), "a@example.com", "s", "b")
	assert.Error(t, err)
}

var _ Sender = (*SMTPSender)(nil)
var _ Sender = LogSender{}
