package outbound

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

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// ApplyBid sets current_bid and extended_time only if current_bid still
	// equals expectedCurrentBid and the auction is LIVE, and appends the bid,
	// all in one transaction. Returns shared.ErrBidConflict when no row matched.
	ApplyBid(ctx context.Context, bid *bid.Bid, expectedCurrentBid int64, extendedTime time.Time) (*auction.Auction, error)

	// UpdateStatus moves an auction from one status to another if it is still
	// in the from status. Returns false when another writer got there first.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to auction.Status, at time.Time) (bool, error)

	// ListDue returns LIVE auctions whose effective end is at or before now and
	// SCHEDULED auctions whose start is at or before now
	ListDue(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)
}

// BidRepository defines the interface for bid history reads
type BidRepository interface {
	// GetByAuctionID retrieves all bids for an auction, highest first
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// GetHighestBid retrieves the highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)
}

// OrderRepository defines order and payment persistence
type OrderRepository interface {
	// CreateWithPayment inserts the order and its payment atomically. A second
	// active order on the same auction fails with shared.ErrAlreadySold.
	CreateWithPayment(ctx context.Context, order *order.Order, payment *order.Payment) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)

	// ActiveForAuction returns the auction's order that is not CANCELED or
	// REFUNDED, or shared.ErrOrderNotFound
	ActiveForAuction(ctx context.Context, auctionID uuid.UUID) (*order.Order, error)

	// UpdateStatus sets the order status. When from is non-empty the write only
	// applies if the current status is one of them.
	UpdateStatus(ctx context.Context, id uuid.UUID, to order.Status, at time.Time, from ...order.Status) (bool, error)

	// Confirm moves a PAID or DELIVERED order to CONFIRMED and creates its
	// payout unless one exists. Returns the stored payout and whether this call
	// performed the confirmation.
	Confirm(ctx context.Context, orderID uuid.UUID, at time.Time, candidate *payout.Payout) (*payout.Payout, bool, error)

	// GetPaymentByOrderID retrieves the payment of an order
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*order.Payment, error)

	// GetPaymentByIntent retrieves a payment by provider intent id
	GetPaymentByIntent(ctx context.Context, intentID string) (*order.Payment, error)

	// UpdatePayment writes status, intent id and refund time of a payment
	UpdatePayment(ctx context.Context, payment *order.Payment) error
}

// PayoutRepository defines payout persistence
type PayoutRepository interface {
	// GetByOrderID retrieves the payout of an order
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*payout.Payout, error)

	// MarkPaid records the transfer id only if the payout is PENDING and has
	// no transfer id yet
	MarkPaid(ctx context.Context, id uuid.UUID, transferID string, paidAt time.Time) (bool, error)

	// RecordFailure stores the last failure reason on a payout that is still
	// PENDING. Returns false when the payout has already left PENDING.
	RecordFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// Cancel moves the order's payout to FAILED only if it is PENDING and has
	// no transfer id. Returns false when there was nothing to cancel.
	Cancel(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) (bool, error)

	// ListDue returns PENDING payouts without transfer id scheduled at or before
	// now, oldest first
	ListDue(ctx context.Context, now time.Time, limit int) ([]*payout.Payout, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error)

	// GetSeller retrieves the payout settings of a seller
	GetSeller(ctx context.Context, id uuid.UUID) (*shared.Seller, error)

	// Create creates a new user
	Create(ctx context.Context, user *shared.User) error
}

// RepositoryFactory hands out the repositories of one store
type RepositoryFactory interface {
	GetAuctionRepository() AuctionRepository
	GetBidRepository() BidRepository
	GetOrderRepository() OrderRepository
	GetPayoutRepository() PayoutRepository
	GetUserRepository() UserRepository
}
