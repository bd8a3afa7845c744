package app

import (
	"context"
	"time"

	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// sideEffects runs the post-commit fan-out shared by the services. Nothing in
// here can fail a request: errors are logged and dropped.
type sideEffects struct {
	broadcaster outbound.Broadcaster
	notifier    outbound.Notifier
	logger      zerolog.Logger
}

func (s sideEffects) publish(ctx context.Context, auctionID uuid.UUID, eventType outbound.EventType, at time.Time, data map[string]interface{}) {
	if s.broadcaster == nil {
		return
	}
	event := outbound.Event{
		Type:      eventType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: at.Unix(),
	}
	if err := s.broadcaster.Publish(ctx, auctionID, event); err != nil {
		s.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("event_type", string(eventType)).
			Msg("Failed to broadcast event")
	}
}

func (s sideEffects) notify(ctx context.Context, notificationType, subject string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	n := outbound.Notification{Type: notificationType, Subject: subject, Data: data}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn().Err(err).
			Str("notification_type", notificationType).
			Str("subject", subject).
			Msg("Failed to send notification")
	}
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return time.Now
}
