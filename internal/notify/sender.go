package notify

import (
	"context"
	"errors"
	"fmt"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
)

// MultiSender fans a notification out to every sender. A failing channel does
// not stop the others.
type MultiSender struct {
	senders []Sender
}

func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{senders: senders}
}

func (m *MultiSender) Name() string { return "multi" }

func (m *MultiSender) Send(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m.senders {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSender writes notifications to the log. Used when no backend is configured.
type LogSender struct{}

func (LogSender) Name() string { return "log" }

func (LogSender) Send(ctx context.Context, n domain.Notification) error {
	logger.InfoContext(ctx, "Notification", "user_id", n.UserID, "type", n.Type, "title", n.Title, "message", n.Message)
	return nil
}
