package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"keygate/internal/config"
)

// Sender delivers messages over SMTP. When no host is configured, sends
// degrade to a log line carrying the link, which keeps local development
// working without a mail server.
type Sender struct {
	runtime config.RuntimeConfig
}

// NewSender creates a Sender.
func NewSender(runtime config.RuntimeConfig) *Sender {
	return &Sender{runtime: runtime}
}

// Send delivers one message. The context bounds the SMTP conversation.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	cfg := s.runtime.Get().Mail

	if !cfg.IsEnabled() {
		logger().Info().
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Msg("mail transport disabled, message logged instead")
		logger().Debug().Str("text", msg.Text).Msg("message body")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := buildMIME(cfg.From, msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GetPort())
	if err := s.deliver(addr, &cfg, msg.To, body); err != nil {
		return fmt.Errorf("smtp delivery to %s: %w", cfg.Host, err)
	}

	logger().Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("mail sent")
	return nil
}

// deliver runs the SMTP conversation for one message.
func (s *Sender) deliver(addr string, cfg *config.MailConfig, to string, body []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if cfg.UseSTARTTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return client.Quit()
}

// mimeBoundary separates the alternative body parts.
const mimeBoundary = "kg-alt-boundary"

// buildMIME assembles a multipart/alternative message with text and HTML
// parts, quoted-printable encoded.
func buildMIME(from string, msg Message) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{contentType: "text/plain; charset=utf-8", body: msg.Text},
		{contentType: "text/html; charset=utf-8", body: msg.HTML},
	} {
		if part.body == "" {
			continue
		}
		fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", part.contentType)
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		b.WriteString("\r\n")

		qp := quotedprintable.NewWriter(&b)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)

	return []byte(b.String()), nil
}
