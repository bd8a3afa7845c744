package ws

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePlaceBid    MessageType = "place_bid"
	MessageTypeGetAuction  MessageType = "get_auction"
	MessageTypePing        MessageType = "ping"

	// Server to Client message types
	MessageTypeBidPlaced       MessageType = "bid_placed"
	MessageTypeBidAccepted     MessageType = "bid_accepted"
	MessageTypeAuctionExtended MessageType = "auction_extended"
	MessageTypeAuctionEnded    MessageType = "auction_ended"
	MessageTypeAuctionCanceled MessageType = "auction_canceled"
	MessageTypeAuctionSold     MessageType = "auction_sold"
	MessageTypeAuctionUpdate   MessageType = "auction_update"
	MessageTypeError           MessageType = "error"
	MessageTypePong            MessageType = "pong"
)

var eventMessageTypes = map[outbound.EventType]MessageType{
	outbound.EventTypeBidPlaced:       MessageTypeBidPlaced,
	outbound.EventTypeAuctionExtended: MessageTypeAuctionExtended,
	outbound.EventTypeAuctionEnded:    MessageTypeAuctionEnded,
	outbound.EventTypeAuctionCanceled: MessageTypeAuctionCanceled,
	outbound.EventTypeOrderSold:       MessageTypeAuctionSold,
}

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Code      shared.Kind            `json:"code,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorMessage reports a failed request; the code lets clients tell a
// stale bid from a rejected one
func NewErrorMessage(err error, auctionID *uuid.UUID) *ServerMessage {
	text := err.Error()
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &text,
		Code:      shared.Classify(err),
		Timestamp: time.Now().Unix(),
	}
}

// NewEventMessage converts a broadcast event into the message viewers receive
func NewEventMessage(event outbound.Event) *ServerMessage {
	msgType, ok := eventMessageTypes[event.Type]
	if !ok {
		msgType = MessageTypeAuctionUpdate
	}
	auctionID := event.AuctionID
	return &ServerMessage{
		Type:      msgType,
		AuctionID: &auctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Amount reads the bid amount in minor units. JSON numbers arrive as float64
// and must be whole.
func (m *ClientMessage) Amount() (int64, error) {
	raw, ok := m.Data["amount"].(float64)
	if !ok || raw <= 0 || raw != math.Trunc(raw) || raw >= math.MaxInt64 {
		return 0, shared.ErrInvalidAmount
	}
	return int64(raw), nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction:
		return m.validateAuctionID()
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		_, err := m.Amount()
		return err
	case MessageTypePing:
		return nil
	default:
		return shared.ErrUnknownMessageType
	}
}
