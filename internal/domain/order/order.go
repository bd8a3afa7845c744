package order

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of an order
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusRequiresPayment Status = "REQUIRES_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusDelivered       Status = "DELIVERED"
	StatusConfirmed       Status = "CONFIRMED"
	StatusCanceled        Status = "CANCELED"
	StatusRefunded        Status = "REFUNDED"
)

// InactiveStatuses release the listing: an order in one of them does not
// count towards the one-active-order-per-auction rule.
var InactiveStatuses = []Status{StatusCanceled, StatusRefunded}

// Order is created once per sold listing
type Order struct {
	ID            uuid.UUID  `json:"id"`
	AuctionID     uuid.UUID  `json:"auction_id"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	Amount        int64      `json:"amount"`
	PlatformFee   int64      `json:"platform_fee"`
	ProcessingFee int64      `json:"processing_fee"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// IsTerminal returns true for CONFIRMED, CANCELED and REFUNDED
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusConfirmed, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

// IsActive returns true while the order holds the listing
func (o *Order) IsActive() bool {
	for _, s := range InactiveStatuses {
		if o.Status == s {
			return false
		}
	}
	return true
}

// CanConfirm returns true when the buyer may confirm receipt
func (o *Order) CanConfirm() bool {
	return o.Status == StatusDelivered || o.Status == StatusPaid
}

// ChargeAmount is what the buyer pays: price plus processing fee
func (o *Order) ChargeAmount() int64 {
	return o.Amount + o.ProcessingFee
}
