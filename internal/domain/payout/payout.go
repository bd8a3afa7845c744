package payout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the disbursement state of a payout
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// Payout is the seller's net proceeds for one confirmed order. Rows are never
// deleted; ProviderTransferID is write-once and doubles as the dedupe key.
type Payout struct {
	ID                 uuid.UUID  `json:"id"`
	OrderID            uuid.UUID  `json:"order_id"`
	SellerID           uuid.UUID  `json:"seller_id"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	ProviderTransferID *string    `json:"provider_transfer_id,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasTransfer returns true once a provider transfer has been recorded
func (p *Payout) HasTransfer() bool {
	return p.ProviderTransferID != nil && *p.ProviderTransferID != ""
}

// Settled returns true when no transfer may ever be attempted again
func (p *Payout) Settled() bool {
	return p.Status == StatusPaid || p.HasTransfer()
}

// IsDue returns true when the holding period has elapsed
func (p *Payout) IsDue(now time.Time) bool {
	return !p.ScheduledAt.After(now)
}

// TransferKey is the idempotency key for the transfer of an order's payout
func TransferKey(orderID uuid.UUID) string {
	return fmt.Sprintf("payout_%s", orderID)
}
