package inbound

import (
	"context"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/bid"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionService defines the auction lifecycle operations
type AuctionService interface {
	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// CancelAuction cancels a listing on behalf of its seller
	CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error)

	// EndAuctionIfDue closes a LIVE auction whose effective end has passed
	EndAuctionIfDue(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionEndResult, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on an auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*BidResult, error)

	// GetBids retrieves bids for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// PurchaseService defines buy-now operations
type PurchaseService interface {
	// BuyNow creates the listing's order and starts the charge
	BuyNow(ctx context.Context, req BuyNowRequest) (*PurchaseResult, error)

	// RetryPayment starts a new charge attempt for an order whose payment failed
	RetryPayment(ctx context.Context, orderID, buyerID uuid.UUID) (*PurchaseResult, error)
}

// SettlementService applies payment provider events
type SettlementService interface {
	ApplyEvent(ctx context.Context, event ProviderEvent) error
}

// PayoutService defines order confirmation and seller disbursement
type PayoutService interface {
	// MarkDelivered is the seller's acknowledgement that a paid order shipped
	MarkDelivered(ctx context.Context, orderID, sellerID uuid.UUID) (*order.Order, error)

	// ConfirmOrder is the buyer's confirmation; it schedules and may disburse the payout
	ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*ConfirmResult, error)

	// DisburseDue transfers every due pending payout, oldest first, up to limit
	DisburseDue(ctx context.Context, limit int) (*SweepResult, error)
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
}

// BidResult is the auction after the bid together with the bid row
type BidResult struct {
	Auction *auction.Auction `json:"auction"`
	Bid     *bid.Bid         `json:"bid"`
}

// request to buy a listing at its fixed price
type BuyNowRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
}

// PurchaseResult is returned by buy-now and payment retries
type PurchaseResult struct {
	Order        *order.Order   `json:"order"`
	Payment      *order.Payment `json:"payment"`
	ClientSecret string         `json:"client_secret,omitempty"`
}

// ProviderEventType names the provider webhook events we act on
type ProviderEventType string

const (
	EventPaymentSucceeded ProviderEventType = "payment_intent.succeeded"
	EventPaymentFailed    ProviderEventType = "payment_intent.payment_failed"
	EventChargeRefunded   ProviderEventType = "charge.refunded"
)

// ProviderEvent is a provider webhook reduced to what settlement needs.
// ObjectID is the provider object of the event; for charge events
// PaymentIntent names the intent the charge belongs to.
type ProviderEvent struct {
	ID            string            `json:"id"`
	Type          ProviderEventType `json:"type"`
	ObjectID      string            `json:"object_id"`
	PaymentIntent string            `json:"payment_intent,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// request to confirm receipt of an order
type ConfirmOrderRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
}

// ConfirmResult reports the confirmed order and its payout
type ConfirmResult struct {
	Order             *order.Order   `json:"order"`
	Payout            *payout.Payout `json:"payout,omitempty"`
	AlreadyConfirmed  bool           `json:"already_confirmed"`
	TransferAttempted bool           `json:"transfer_attempted"`
}

// SweepResult summarises one payout sweep
type SweepResult struct {
	Selected int `json:"selected"`
	Paid     int `json:"paid"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
