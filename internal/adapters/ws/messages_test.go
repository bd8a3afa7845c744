package ws

import (
	"testing"

	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	auctionID := uuid.New()

	msg, err := ParseClientMessage([]byte(`{"type":"place_bid","auction_id":"` + auctionID.String() + `","data":{"amount":12000}}`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypePlaceBid, msg.Type)
	require.NoError(t, msg.Validate())

	amount, err := msg.Amount()
	require.NoError(t, err)
	assert.Equal(t, int64(12000), amount)

	_, err = ParseClientMessage([]byte(`{"auction_id":"` + auctionID.String() + `"}`))
	assert.ErrorIs(t, err, shared.ErrMessageTypeRequired)

	_, err = ParseClientMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestClientMessage_Validate(t *testing.T) {
	auctionID := uuid.New()

	tests := []struct {
		name string
		msg  ClientMessage
		want error
	}{
		{"ping needs nothing", ClientMessage{Type: MessageTypePing}, nil},
		{"subscribe", ClientMessage{Type: MessageTypeSubscribe, AuctionID: &auctionID}, nil},
		{"subscribe without auction", ClientMessage{Type: MessageTypeSubscribe}, shared.ErrAuctionIDRequired},
		{"bid without amount", ClientMessage{Type: MessageTypePlaceBid, AuctionID: &auctionID}, shared.ErrInvalidAmount},
		{"fractional bid", ClientMessage{Type: MessageTypePlaceBid, AuctionID: &auctionID, Data: map[string]interface{}{"amount": 120.5}}, shared.ErrInvalidAmount},
		{"negative bid", ClientMessage{Type: MessageTypePlaceBid, AuctionID: &auctionID, Data: map[string]interface{}{"amount": -5.0}}, shared.ErrInvalidAmount},
		{"unknown type", ClientMessage{Type: "create_auction"}, shared.ErrUnknownMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewEventMessage(t *testing.T) {
	auctionID := uuid.New()

	msg := NewEventMessage(outbound.Event{
		Type:      outbound.EventTypeAuctionExtended,
		AuctionID: auctionID,
		Data:      map[string]interface{}{"extends_by": 12},
		Timestamp: 42,
	})
	assert.Equal(t, MessageTypeAuctionExtended, msg.Type)
	assert.Equal(t, auctionID, *msg.AuctionID)
	assert.Equal(t, int64(42), msg.Timestamp)

	sold := NewEventMessage(outbound.Event{Type: outbound.EventTypeOrderSold, AuctionID: auctionID})
	assert.Equal(t, MessageTypeAuctionSold, sold.Type)

	other := NewEventMessage(outbound.Event{Type: "something.else", AuctionID: auctionID})
	assert.Equal(t, MessageTypeAuctionUpdate, other.Type)
}

func TestNewErrorMessage_CarriesKind(t *testing.T) {
	auctionID := uuid.New()

	msg := NewErrorMessage(shared.ErrBidConflict, &auctionID)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "bid out of date, refresh and resubmit", *msg.Error)
	assert.Equal(t, shared.KindConflict, msg.Code)
}
