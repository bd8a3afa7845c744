package broadcaster

import (
	"context"
	"sync"
	"time"

	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalBroadcaster fans events out inside one process. It backs single-node
// runs and tests where viewers and bidders share an instance.
type LocalBroadcaster struct {
	subscribers map[uuid.UUID]map[string]chan outbound.Event // auctionID -> clientID -> channel
	mu          sync.RWMutex
	logger      zerolog.Logger
}

func NewLocalBroadcaster(logger zerolog.Logger) *LocalBroadcaster {
	return &LocalBroadcaster{
		subscribers: make(map[uuid.UUID]map[string]chan outbound.Event),
		logger:      logger.With().Str("component", "local_broadcaster").Logger(),
	}
}

func (l *LocalBroadcaster) Subscribe(_ context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subscribers[auctionID] == nil {
		l.subscribers[auctionID] = make(map[string]chan outbound.Event)
	}
	l.subscribers[auctionID][clientID] = eventChan
	return nil
}

func (l *LocalBroadcaster) Unsubscribe(_ context.Context, auctionID uuid.UUID, clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.subscribers[auctionID], clientID)
	if len(l.subscribers[auctionID]) == 0 {
		delete(l.subscribers, auctionID)
	}
	return nil
}

func (l *LocalBroadcaster) RemoveClient(_ context.Context, clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for auctionID, clients := range l.subscribers {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(l.subscribers, auctionID)
		}
	}
	return nil
}

// Publish never blocks; a full subscriber channel drops the event
func (l *LocalBroadcaster) Publish(_ context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for clientID, ch := range l.subscribers[auctionID] {
		select {
		case ch <- event:
		default:
			l.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
		}
	}
	return nil
}

var _ outbound.Broadcaster = (*LocalBroadcaster)(nil)
