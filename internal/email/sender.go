package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/config"
)

// Sender defines the interface for sending emails.
// The rawMessage parameter should contain the full email message, including headers and body, properly formatted.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// NewSender builds the sender selected by cfg.EmailMode. In "smtp" mode every
// message is also logged at debug level.
func NewSender(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (Sender, error) {
	switch cfg.EmailMode {
	case "smtp":
		return NewCompositeEmailSender(NewSMTPSender(cfg, logger), NewLoggingSender(cfg.SmtpFromAddress, logger)), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("email mode redis requires a redis client")
		}
		return NewRedisSender(rdb, cfg.SmtpFromAddress, logger), nil
	case "file":
		return NewFileEmailSender(cfg.EmailFilePath, logger)
	default:
		return NewLoggingSender(cfg.SmtpFromAddress, logger), nil
	}
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	from   string
	auth   smtp.Auth
	addr   string
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTPSender. Without a configured host it falls
// back to a LoggingSender.
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) Sender {
	if cfg.SmtpHost == "" {
		logger.Warn("SMTP host not configured, using logging email sender")
		return NewLoggingSender(cfg.SmtpFromAddress, logger)
	}

	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}

	return &SMTPSender{
		from:   cfg.SmtpFromAddress,
		auth:   auth,
		addr:   fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		logger: logger.With(zap.String("component", "email.smtp")),
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		s.logger.Error("smtp send failed", zap.Strings("to", to), zap.Error(err))
		return fmt.Errorf("smtp error: %w", err)
	}
	s.logger.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// LoggingSender just logs email details.
// Useful for development or when SMTP isn't configured.
type LoggingSender struct {
	from   string
	logger *zap.Logger
}

func NewLoggingSender(from string, logger *zap.Logger) *LoggingSender {
	return &LoggingSender{from: from, logger: logger.With(zap.String("component", "email.log"))}
}

// Send logs the email instead of sending it.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.logger.Info("email (logged)",
		zap.Strings("to", to),
		zap.String("from", s.from),
		zap.String("subject", subject),
		zap.ByteString("raw", rawMessage),
	)
	return nil
}
