package service

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrInvalidRecipient = errors.New("invalid email address")

// NewTransport returns an SMTP transport, or one that only logs messages
// when mail.host isn't configured
func NewTransport() Transport {
	host := viper.GetString("mail.host")
	if host == "" {
		return LogTransport{}
	}

	from := viper.GetString("mail.sender_address")

	return &SMTPTransport{
		from:   from,
		dialer: gomail.NewDialer(host, viper.GetInt("mail.port"), from, viper.GetString("mail.password")),
	}
}

type SMTPTransport struct {
	from   string
	dialer *gomail.Dialer
}

func (t *SMTPTransport) Deliver(m Mail) error {
	if m.To == "" || m.To == t.from {
		return ErrInvalidRecipient
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", t.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.Body)

	return t.dialer.DialAndSend(msg)
}

// LogTransport is used in development
type LogTransport struct{}

func (LogTransport) Deliver(m Mail) error {
	if m.To == "" {
		return ErrInvalidRecipient
	}

	zap.L().Info("Outgoing mail",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body))
	return nil
}

func baseURL() string {
	proto := "http"
	if viper.GetBool("host.ssl.enabled") {
		proto = "https"
	}

	return fmt.Sprintf("%s://%s", proto, viper.GetString("host.domain"))
}

func VerificationMail(to, token string) Mail {
	link := fmt.Sprintf("%s/new-verification?token=%s", baseURL(), url.QueryEscape(token))

	return Mail{
		To:      to,
		Subject: "Confirm your email",
		Body:    fmt.Sprintf("<p>Click <a href=\"%s\">here</a> to confirm your email.</p><p>This link expires in 1 hour.</p>", link),
	}
}

func PasswordResetMail(to, token string) Mail {
	link := fmt.Sprintf("%s/new-password?token=%s", baseURL(), url.QueryEscape(token))

	return Mail{
		To:      to,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("<p>Click <a href=\"%s\">here</a> to reset your password.</p><p>This link expires in 1 hour.</p>", link),
	}
}

func TwoFactorMail(to, code string) Mail {
	return Mail{
		To:      to,
		Subject: "2FA Code",
		Body:    fmt.Sprintf("<p>Your 2FA code: <b>%s</b></p><p>The code expires in 5 minutes.</p>", code),
	}
}
