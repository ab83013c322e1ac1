package email

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	mail := buildMessage("bursar@school.example", Message{
		To:       "guardian@example.com",
		Subject:  "School Fees Payment Receipt NLJ7RT61SV",
		TextBody: "Amount Paid: KES 500.00",
		HTMLBody: "<p>Amount paid: KES 500</p>",
	})

	assert.Equal(t, []string{"bursar@school.example"}, mail.GetHeader("From"))
	assert.Equal(t, []string{"guardian@example.com"}, mail.GetHeader("To"))
	assert.Equal(t, []string{"School Fees Payment Receipt NLJ7RT61SV"}, mail.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := mail.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestNewMailer_SenderDefaultsToUsername(t *testing.T) {
	t.Parallel()

	m := NewMailer(Config{Host: "smtp.example.com", Port: 587, Username: "fees@example.com"})
	assert.Equal(t, "fees@example.com", m.sender)
}

func TestSend_CancelledContext(t *testing.T) {
	t.Parallel()

	m := NewMailer(Config{Host: "127.0.0.1", Port: 1, Sender: "fees@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: "guardian@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend_StalledServerHonoursDeadline(t *testing.T) {
	t.Parallel()

	// Accepts connections but never sends the SMTP greeting.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conns <- conn
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		select {
		case conn := <-conns:
			conn.Close()
		default:
		}
	})

	port := ln.Addr().(*net.TCPAddr).Port
	m := NewMailer(Config{Host: "127.0.0.1", Port: port, Sender: "fees@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Send(ctx, Message{To: "guardian@example.com", TextBody: "receipt"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
