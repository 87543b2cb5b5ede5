package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// GatewayDomain turns a phone number into an email-to-SMS address,
	// e.g. 5551234567@txt.example.com. Destinations that already contain
	// an @ are used as is.
	GatewayDomain string
	AuthDisabled  bool
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher delivers alerts by mail, usually through an email-to-SMS
// gateway.
type SMTPDispatcher struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, sendMail: smtp.SendMail}
}

func (d *SMTPDispatcher) Send(ctx context.Context, destination, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to, err := d.address(destination)
	if err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + d.cfg.From,
		"To: " + to,
		"Subject: Low inventory alert",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		message,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	var auth smtp.Auth
	if !d.cfg.AuthDisabled {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	if err := d.sendMail(addr, auth, d.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (d *SMTPDispatcher) address(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("empty destination")
	}
	if strings.Contains(destination, "@") {
		return destination, nil
	}
	if d.cfg.GatewayDomain == "" {
		return "", fmt.Errorf("no SMS gateway configured for %s", destination)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, destination)
	if digits == "" {
		return "", fmt.Errorf("invalid phone number %q", destination)
	}
	return digits + "@" + d.cfg.GatewayDomain, nil
}
