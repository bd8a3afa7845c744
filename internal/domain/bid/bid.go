package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an accepted bid. Bids are append-only history: one row per
// successful conditional update of the auction's current bid.
type Bid struct {
	ID             uuid.UUID `json:"id"`
	AuctionID      uuid.UUID `json:"auction_id"`
	BidderID       uuid.UUID `json:"bidder_id"`
	Amount         int64     `json:"amount"`
	ExtendsTimerBy int64     `json:"extends_timer_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// New creates a bid stamped at now
func New(auctionID, bidderID uuid.UUID, amount, extendsTimerBy int64, now time.Time) *Bid {
	return &Bid{
		ID:             uuid.New(),
		AuctionID:      auctionID,
		BidderID:       bidderID,
		Amount:         amount,
		ExtendsTimerBy: extendsTimerBy,
		CreatedAt:      now,
	}
}
