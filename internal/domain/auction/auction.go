package auction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current status of an auction
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusEnded     Status = "ENDED"
	StatusCanceled  Status = "CANCELED"
)

// ListingType says which purchase paths a listing offers
type ListingType string

const (
	ListingAuction ListingType = "AUCTION"
	ListingBuyNow  ListingType = "BUY_NOW"
	ListingBoth    ListingType = "BOTH"
)

// Auction represents a listing that accepts bids, buy-now purchases or both.
// Amounts are integer minor currency units.
type Auction struct {
	ID               uuid.UUID   `json:"id"`
	SellerID         uuid.UUID   `json:"seller_id"`
	Status           Status      `json:"status"`
	ListingType      ListingType `json:"listing_type"`
	CurrentBid       int64       `json:"current_bid"`
	MinBidIncrement  int64       `json:"min_bid_increment"`
	BuyNowPrice      *int64      `json:"buy_now_price,omitempty"`
	StartTime        time.Time   `json:"start_time"`
	EndTime          *time.Time  `json:"end_time,omitempty"`
	ExtendedTime     *time.Time  `json:"extended_time,omitempty"`
	AntiSnipeSeconds int64       `json:"anti_snipe_seconds"`
	Currency         string      `json:"currency"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsClosed returns true once the auction can no longer change hands
func (a *Auction) IsClosed() bool {
	return a.Status == StatusEnded || a.Status == StatusCanceled
}

// AcceptsBids returns true if the listing type allows competitive bidding
func (a *Auction) AcceptsBids() bool {
	return a.ListingType != ListingBuyNow
}

// OffersBuyNow returns true if the listing can be bought at a fixed price
func (a *Auction) OffersBuyNow() bool {
	return a.ListingType != ListingAuction && a.BuyNowPrice != nil
}

// MinimumNextBid is the lowest amount the next bid may carry
func (a *Auction) MinimumNextBid() int64 {
	return a.CurrentBid + a.MinBidIncrement
}

// AntiSnipeWindow is the extension applied by every accepted bid
func (a *Auction) AntiSnipeWindow() time.Duration {
	return time.Duration(a.AntiSnipeSeconds) * time.Second
}
