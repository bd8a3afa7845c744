package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeBidPlaced       EventType = "bid.placed"
	EventTypeAuctionExtended EventType = "auction.extended"
	EventTypeAuctionEnded    EventType = "auction.ended"
	EventTypeAuctionCanceled EventType = "auction.canceled"
	EventTypeOrderSold       EventType = "order.sold"
	EventTypeError           EventType = "error"
)

// Event represents a broadcast event
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster fans live auction events out to connected viewers
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific auction
	// When a client subscribes to multiple auctions, all events are delivered to the same channel
	Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific auction
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error

	// RemoveClient drops every subscription of a disconnected client.
	// The event channel belongs to the caller and is never closed here.
	RemoveClient(ctx context.Context, clientID string) error

	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error
}
