package mail

import (
	"strings"

	"github.com/weaveui/dataset-manager/internal/config"
)

// Message kinds, sent in the brand type header.
const (
	KindConsent = "consent"
	KindReceipt = "receipt"
)

// Composer applies the sender identity and relay settings to outgoing mail.
type Composer struct {
	sender config.SenderConfig
	smtp   config.SMTPConfig
}

// NewComposer builds a composer.
func NewComposer(sender config.SenderConfig, smtp config.SMTPConfig) *Composer {
	return &Composer{sender: sender, smtp: smtp}
}

// Compose builds a message to one recipient. The subject gets a "[Brand] " prefix and
// the message carries X-<Brand>, X-<Brand>-Entry and X-<Brand>-Type headers.
func (c *Composer) Compose(kind, entryID, to, subject, text, html string) Message {
	brand := c.sender.Brand
	msg := Message{
		From:    c.from(),
		To:      []string{to},
		ReplyTo: c.smtp.ReplyTo,
		Subject: subject,
		Text:    text,
		HTML:    html,
	}
	if brand != "" {
		msg.Subject = "[" + brand + "] " + subject
		prefix := "X-" + headerToken(brand)
		msg.Headers = map[string]string{
			prefix:            "true",
			prefix + "-Entry": entryID,
			prefix + "-Type":  kind,
		}
	}
	if c.smtp.Bcc != "" {
		for _, addr := range strings.Split(c.smtp.Bcc, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				msg.Bcc = append(msg.Bcc, addr)
			}
		}
	}
	return msg
}

func (c *Composer) from() string {
	if c.smtp.From != "" {
		return c.smtp.From
	}
	if c.sender.Name != "" && c.sender.Email != "" {
		return c.sender.Name + " <" + c.sender.Email + ">"
	}
	return c.sender.Email
}

// headerToken keeps letters, digits and dashes so the brand is a valid header name.
func headerToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
