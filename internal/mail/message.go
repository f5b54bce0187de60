// Package mail delivers magic-link email. Sending is always best-effort
// and decoupled from the request path: handlers enqueue into a reactive
// dispatcher which throttles outbound SMTP traffic.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// magicLinkData feeds the magic-link templates.
type magicLinkData struct {
	Name          string
	Link          string
	ExpiryMinutes int
}

// ComposeMagicLink renders the magic-link email for a recipient. The link
// points at the verify endpoint on the public base URL.
func ComposeMagicLink(publicBaseURL, email, name, token string, ttl time.Duration) (Message, error) {
	data := magicLinkData{
		Name:          name,
		Link:          strings.TrimSuffix(publicBaseURL, "/") + "/auth/verify?token=" + token,
		ExpiryMinutes: int(ttl / time.Minute),
	}

	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, "magic_link.html", data); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, "magic_link.txt", data); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}

	return Message{
		To:      email,
		Subject: "Your sign-in link",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
