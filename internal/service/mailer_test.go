package service

import (
	"bytes"
	"context"
	"testing"

	"support-lab/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_BuildMessage(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{
		Host:        "localhost",
		Port:        1025,
		FromAddress: "support@example.com",
		FromName:    "Support Lab",
	})

	msg := m.buildMessage(Email{To: "dev@example.com", Subject: "Integration test", Body: "hello there"})
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: \"Support Lab\" <support@example.com>")
	assert.Contains(t, raw, "To: dev@example.com")
	assert.Contains(t, raw, "Subject: Integration test")
	assert.Contains(t, raw, "hello there")
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Email{To: "a@b.c", Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, context.Canceled)
}
