package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// EmailSender dispatches one rendered email. Transport mechanics live
// behind this boundary; the pipeline only sees success or failure.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// SMSSender dispatches one rendered SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// LogEmailSender is the development sender: it logs instead of dispatching.
type LogEmailSender struct {
	cfg    config.NotifyConfig
	logger *zap.Logger
}

// NewLogEmailSender constructs the sender.
func NewLogEmailSender(cfg config.NotifyConfig, logger *zap.Logger) *LogEmailSender {
	return &LogEmailSender{cfg: cfg, logger: logger}
}

func (s *LogEmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	if strings.TrimSpace(s.cfg.EmailFrom) == "" {
		return nil
	}
	s.logger.Info("sendEmail",
		zap.String("from", s.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// LogSMSSender is the development SMS sender.
type LogSMSSender struct {
	cfg    config.NotifyConfig
	logger *zap.Logger
}

// NewLogSMSSender constructs the sender.
func NewLogSMSSender(cfg config.NotifyConfig, logger *zap.Logger) *LogSMSSender {
	return &LogSMSSender{cfg: cfg, logger: logger}
}

func (s *LogSMSSender) SendSMS(ctx context.Context, to, text string) error {
	if strings.TrimSpace(s.cfg.SMSFrom) == "" {
		return nil
	}
	s.logger.Info("sendSMS",
		zap.String("from", s.cfg.SMSFrom),
		zap.String("to", to),
		zap.String("text", text))
	return nil
}
