package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Message is a transactional email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// Mailer sends email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	sender string
}

// NewMailer creates an SMTP mailer.
func NewMailer(cfg Config) *Mailer {
	sender := cfg.Sender
	if sender == "" {
		sender = cfg.Username
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		sender: sender,
	}
}

// Send delivers msg. The SMTP exchange itself cannot be cancelled, so Send
// returns ctx.Err() once ctx is done and leaves the exchange to finish.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := buildMessage(m.sender, msg)
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(mail)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", msg.To, ctx.Err())
	}
}

func buildMessage(sender string, msg Message) *gomail.Message {
	mail := gomail.NewMessage()
	mail.SetHeader("From", sender)
	mail.SetHeader("To", msg.To)
	mail.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		mail.SetBody("text/plain", msg.TextBody)
		mail.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		mail.SetBody("text/html", msg.HTMLBody)
	default:
		mail.SetBody("text/plain", msg.TextBody)
	}
	return mail
}
