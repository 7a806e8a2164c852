package email

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SessionPulse/internal/models"
)

func unusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestSMTPSender_UnreachableHost(t *testing.T) {
	s := &SMTPSender{Host: "127.0.0.1", Port: unusedPort(t), From: "noreply@example.com"}
	msg := models.RenderedEmail{Subject: "Updated: Design review", HTML: "<p>hi</p>"}

	err := s.Send(context.Background(), msg, models.Recipient{Email: "ada@example.com", Name: "Ada"})
	assert.ErrorContains(t, err, "smtp send error")
}

func TestSMTPSender_StopsOnContextCancel(t *testing.T) {
	s := &SMTPSender{Host: "127.0.0.1", Port: unusedPort(t), From: "noreply@example.com", Retries: 60}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Send(ctx, models.RenderedEmail{}, models.Recipient{Email: "ada@example.com"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
