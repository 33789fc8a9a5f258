package smtp

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	mail "github.com/go-mail/mail/v2"
)

var (
	invisibleBlocks = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	lineBreakTags   = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|table)>`)
	anyTag          = regexp.MustCompile(`<[^>]*>`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Compose renders msg as a MIME message. It is multipart/alternative
// (text/plain + text/html) whenever a plain-text body is given or can be
// derived from the HTML, and single-part otherwise. The boundary is derived
// from now, so each call gets its own.
func Compose(from, fromName string, msg domain.MailMessage, now time.Time) ([]byte, error) {
	m := mail.NewMessage()
	m.SetAddressHeader("From", from, fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", now)
	m.SetBoundary(Boundary(now))

	text := msg.TextBody
	if text == "" {
		text = StripTags(msg.HTMLBody)
	}
	switch {
	case msg.HTMLBody == "":
		m.SetBody("text/plain", text)
	case text == "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", text)
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	return buf.Bytes(), nil
}

// Boundary returns the multipart boundary used for a message composed at t.
func Boundary(t time.Time) string {
	return fmt.Sprintf("coursehub-%x", t.UnixNano())
}

// StripTags derives a plain-text rendering of an HTML fragment. It is a
// tag stripper, not an HTML parser.
func StripTags(s string) string {
	s = invisibleBlocks.ReplaceAllString(s, "")
	s = lineBreakTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
