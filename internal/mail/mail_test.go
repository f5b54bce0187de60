package mail_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/internal/config"
	"keygate/internal/mail"
)

func TestComposeMagicLink(t *testing.T) {
	t.Parallel()

	msg, err := mail.ComposeMagicLink(
		"https://auth.example.com/", "dev@example.com", "Dev", "tok-abc", 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "dev@example.com", msg.To)
	assert.Equal(t, "Your sign-in link", msg.Subject)

	link := "https://auth.example.com/auth/verify?token=tok-abc"
	assert.Contains(t, msg.Text, link)
	assert.Contains(t, msg.HTML, link)
	assert.Contains(t, msg.Text, "15 minutes")
	assert.Contains(t, msg.HTML, "15 minutes")
	assert.Contains(t, msg.Text, "Hi Dev,")
}

func TestComposeMagicLinkWithoutName(t *testing.T) {
	t.Parallel()

	msg, err := mail.ComposeMagicLink(
		"https://auth.example.com", "dev@example.com", "", "tok", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hi,")
}

func TestComposeMagicLinkEscapesHTML(t *testing.T) {
	t.Parallel()

	msg, err := mail.ComposeMagicLink(
		"https://auth.example.com", "dev@example.com", "<script>x</script>", "tok", 15*time.Minute)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestSenderDisabledLogsInsteadOfSending(t *testing.T) {
	t.Parallel()

	// No SMTP host configured: Send must succeed without a mail server.
	sender := mail.NewSender(config.NewRuntime(&config.Config{}))
	err := sender.Send(t.Context(), mail.Message{
		To:      "dev@example.com",
		Subject: "Your sign-in link",
		Text:    "body",
	})
	require.NoError(t, err)
}

func TestSenderUnreachableHost(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Mail.Host = "127.0.0.1"
	cfg.Mail.Port = 1 // nothing listens here
	cfg.Mail.From = "keygate@example.com"

	sender := mail.NewSender(config.NewRuntime(cfg))
	err := sender.Send(t.Context(), mail.Message{To: "dev@example.com", Text: "body"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp delivery")
}

func TestBuildMIME(t *testing.T) {
	t.Parallel()

	body, err := mail.BuildMIMEForTest("keygate@example.com", mail.Message{
		To:      "dev@example.com",
		Subject: "Your sign-in link",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	raw := string(body)
	assert.Contains(t, raw, "From: keygate@example.com\r\n")
	assert.Contains(t, raw, "To: dev@example.com\r\n")
	assert.Contains(t, raw, "Subject: Your sign-in link\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain; charset=utf-8")
	assert.Contains(t, raw, "text/html; charset=utf-8")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "html body")
	assert.True(t, strings.HasSuffix(raw, "--\r\n"))
}

func TestBuildMIMESkipsEmptyParts(t *testing.T) {
	t.Parallel()

	body, err := mail.BuildMIMEForTest("keygate@example.com", mail.Message{
		To:   "dev@example.com",
		Text: "only text",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "text/html")
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	t.Parallel()

	// Disabled transport makes Send a no-op log, so the dispatcher drains
	// without a mail server.
	sender := mail.NewSender(config.NewRuntime(&config.Config{}))
	dispatcher := mail.NewDispatcher(t.Context(), sender, 10_000)

	for range 5 {
		assert.True(t, dispatcher.Enqueue(mail.Message{To: "dev@example.com"}))
	}

	require.NoError(t, dispatcher.Shutdown(t.Context()))

	// After shutdown, intake is closed.
	assert.False(t, dispatcher.Enqueue(mail.Message{To: "dev@example.com"}))
}

func TestDispatcherShutdownIdempotent(t *testing.T) {
	t.Parallel()

	sender := mail.NewSender(config.NewRuntime(&config.Config{}))
	dispatcher := mail.NewDispatcher(t.Context(), sender, 10_000)

	require.NoError(t, dispatcher.Shutdown(t.Context()))
	require.NoError(t, dispatcher.Shutdown(t.Context()))
}

func TestDispatcherConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	sender := mail.NewSender(config.NewRuntime(&config.Config{}))
	dispatcher := mail.NewDispatcher(t.Context(), sender, 100_000)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				dispatcher.Enqueue(mail.Message{To: "dev@example.com"})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, dispatcher.Shutdown(t.Context()))
}
