package notifier

import (
	"context"

	"live-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log when no bus is configured
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, note outbound.Notification) error {
	n.logger.Info().
		Str("notification_type", note.Type).
		Str("subject", note.Subject).
		Interface("data", note.Data).
		Msg("Notification")
	return nil
}

var _ outbound.Notifier = (*LogNotifier)(nil)
