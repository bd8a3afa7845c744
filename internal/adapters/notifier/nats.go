// Package notifier delivers notifications to the messaging collaborator.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"live-auction-service/internal/ports/outbound"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// message is the wire form of a notification
type message struct {
	Type    string                 `json:"type"`
	Subject string                 `json:"subject"`
	Data    map[string]interface{} `json:"data,omitempty"`
	SentAt  time.Time              `json:"sent_at"`
}

// NATSNotifier publishes each notification on <prefix>.<type>. Core NATS
// publish is fire-and-forget, which is all a notification needs.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

type NATSNotifierParams struct {
	Conn          *nats.Conn
	SubjectPrefix string
	Now           func() time.Time
	Logger        zerolog.Logger
}

func NewNATSNotifier(params NATSNotifierParams) *NATSNotifier {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &NATSNotifier{
		conn:   params.Conn,
		prefix: params.SubjectPrefix,
		now:    now,
		logger: params.Logger.With().Str("component", "nats_notifier").Logger(),
	}
}

// Connect dials NATS with reconnects enabled
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("live-auction-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Subject returns the NATS subject for a notification type
func (n *NATSNotifier) Subject(notificationType string) string {
	if n.prefix == "" {
		return notificationType
	}
	return n.prefix + "." + notificationType
}

func (n *NATSNotifier) Notify(_ context.Context, note outbound.Notification) error {
	payload, err := json.Marshal(message{
		Type:    note.Type,
		Subject: note.Subject,
		Data:    note.Data,
		SentAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := n.Subject(note.Type)
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", subject, err)
	}

	n.logger.Debug().Str("nats_subject", subject).Str("subject", note.Subject).Msg("Notification published")
	return nil
}

var _ outbound.Notifier = (*NATSNotifier)(nil)
