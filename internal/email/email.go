package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SendText delivers a plain-text email. Callers treat failures as
// non-fatal; notification delivery never blocks the request path.
func SendText(cfg SMTPConfig, to, subject, body string) error {
	if cfg.Host == "" || cfg.From == "" {
		return fmt.Errorf("email: smtp not configured")
	}

	var msg strings.Builder
	msg.WriteString("From: " + cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var a smtp.Auth
	if cfg.User != "" {
		a = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return smtp.SendMail(addr, a, cfg.From, []string{to}, []byte(msg.String()))
}
