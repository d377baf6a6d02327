package service

import (
	"fmt"
	"net/smtp"

	"clinic-queue/config"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

type Mailer interface {
	SendPasswordReset(to, fullName, link string) error
}

// NewMailer returns an SMTP mailer, or a mailer that only logs the link when no server is configured
func NewMailer(cfg config.MailConfig, log *logrus.Logger) Mailer {
	if cfg.Host == "" {
		return &logMailer{log: log}
	}
	return &smtpMailer{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

type smtpMailer struct {
	cfg  config.MailConfig
	addr string
}

func (m *smtpMailer) SendPasswordReset(to, fullName, link string) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = "Recuperación de contraseña"
	e.Text = []byte(fmt.Sprintf(
		"Hola %s,\n\nPara restablecer tu contraseña abre el siguiente enlace:\n%s\n\nSi no solicitaste el cambio, ignora este mensaje.\n",
		fullName, link,
	))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send reset email: %w", err)
	}
	return nil
}

type logMailer struct {
	log *logrus.Logger
}

func (m *logMailer) SendPasswordReset(to, fullName, link string) error {
	m.log.WithFields(logrus.Fields{"to": to, "link": link}).Info("Mail server not configured, password reset link logged")
	return nil
}
