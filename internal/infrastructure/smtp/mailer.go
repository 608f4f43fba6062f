package smtp

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/smartfix-api/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.SMTP) Mailer {
	return &mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.from, to, subject, time.Now().UTC().Format(time.RFC1123Z), body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := m.send(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LockoutAlert renders the message sent when an account gets locked.
func LockoutAlert(displayName string, until time.Time) (subject, body string) {
	subject = "Your SmartFix account has been locked"
	body = fmt.Sprintf("Hello %s,\r\n\r\n"+
		"Your account was locked after too many failed sign-in attempts.\r\n"+
		"You can try again after %s.\r\n\r\n"+
		"If this was not you, contact an administrator.\r\n",
		displayName, until.UTC().Format(time.RFC1123))
	return subject, body
}
