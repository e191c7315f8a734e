// Package notify delivers SMS. Providers implement one contract; the ledger
// never sees a provider, only outbox rows that the Dispatcher drains.
package notify

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// Sender is the provider contract. Payment and order correctness never
// depends on it: a failed Send only marks the outbox row for retry.
type Sender interface {
	Send(ctx context.Context, to, message string) error
	SendBulk(ctx context.Context, recipients []string, message string) error
}

// FromEnv picks the configured provider, falling back to a log-only sender
// so development setups work without credentials.
func FromEnv(logger *zap.Logger) Sender {
	switch os.Getenv("SMS_PROVIDER") {
	case "africastalking":
		if s, err := NewAfricasTalkingSender(); err == nil {
			return s
		} else {
			logger.Warn("africastalking sender unavailable, falling back to log sender", zap.Error(err))
		}
	case "twilio":
		if s, err := NewTwilioSender(); err == nil {
			return s
		} else {
			logger.Warn("twilio sender unavailable, falling back to log sender", zap.Error(err))
		}
	}
	return &LogSender{logger: logger}
}

// LogSender records messages instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, message string) error {
	s.logger.Info("sms (log only)", zap.String("to", to), zap.String("message", message))
	return nil
}

func (s *LogSender) SendBulk(ctx context.Context, recipients []string, message string) error {
	for _, to := range recipients {
		if err := s.Send(ctx, to, message); err != nil {
			return err
		}
	}
	return nil
}
