package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/api/internal/config"
)

func TestActivationComposer(t *testing.T) {
	composer := NewActivationComposer(Address{Name: "UserHub", Address: "no-reply@userhub.local"}, "https://userhub.local/activate/")
	expires := time.Date(2024, 1, 1, 12, 15, 0, 0, time.UTC)

	msg := composer.Compose("alice", "alice@ex.com", "tok-123", expires)

	assert.Equal(t, "alice@ex.com", msg.To)
	assert.Equal(t, "no-reply@userhub.local", msg.From.Address)
	assert.Contains(t, msg.Text, "https://userhub.local/activate/tok-123")
	assert.True(t, strings.HasPrefix(msg.Text, "alice,"))
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	_, err := buildMessage(Message{From: Address{Address: "ok@ex.com"}, To: "not an address"})
	assert.Error(t, err)

	m, err := buildMessage(Message{From: Address{Name: "UserHub", Address: "ok@ex.com"}, To: "alice@ex.com", Subject: "hi", Text: "body"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	sender := NewSender(config.MailConfig{}, logger)
	require.IsType(t, &LogSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), Message{To: "alice@ex.com", Subject: "Activate"}))
	assert.Contains(t, buf.String(), "alice@ex.com")

	assert.IsType(t, &SMTPSender{}, NewSender(config.MailConfig{Host: "smtp.ex.com", Port: 25}, logger))
}
