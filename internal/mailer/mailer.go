// Package mailer sends transactional mail over SMTP.  Delivery is best
// effort: callers decide how to degrade when Send fails (the password
// reset flow falls back to returning the link in the response).
package mailer

import (
	"errors"

	gomail "gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mailer: SMTP not configured")

// Mailer wraps an SMTP endpoint.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// New builds a Mailer.  An empty host produces a mailer whose Send always
// returns ErrNotConfigured, which keeps local setups working without SMTP.
func New(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from}
}

// Send delivers a single HTML message to one recipient.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if m.host == "" {
		return ErrNotConfigured
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}
