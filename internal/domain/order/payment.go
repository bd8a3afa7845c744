package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus mirrors the provider's view of a charge
type PaymentStatus string

const (
	PaymentRequiresPaymentMethod PaymentStatus = "REQUIRES_PAYMENT_METHOD"
	PaymentRequiresConfirmation  PaymentStatus = "REQUIRES_CONFIRMATION"
	PaymentProcessing            PaymentStatus = "PROCESSING"
	PaymentSucceeded             PaymentStatus = "SUCCEEDED"
	PaymentFailed                PaymentStatus = "FAILED"
	PaymentCanceled              PaymentStatus = "CANCELED"
	PaymentRefunded              PaymentStatus = "REFUNDED"
)

// Payment is 1:1 with an order
type Payment struct {
	ID                    uuid.UUID     `json:"id"`
	OrderID               uuid.UUID     `json:"order_id"`
	Provider              string        `json:"provider"`
	Amount                int64         `json:"amount"`
	Currency              string        `json:"currency"`
	ProviderPaymentIntent *string       `json:"provider_payment_intent,omitempty"`
	Status                PaymentStatus `json:"status"`
	RefundedAt            *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// CanRetry returns true when a new charge attempt may be made
func (p *Payment) CanRetry() bool {
	switch p.Status {
	case PaymentFailed, PaymentRequiresPaymentMethod, PaymentCanceled:
		return true
	}
	return false
}

var providerStatuses = map[string]PaymentStatus{
	"requires_payment_method": PaymentRequiresPaymentMethod,
	"requires_action":         PaymentRequiresConfirmation,
	"requires_confirmation":   PaymentRequiresConfirmation,
	"processing":              PaymentProcessing,
	"requires_capture":        PaymentProcessing,
	"succeeded":               PaymentSucceeded,
	"canceled":                PaymentCanceled,
}

// PaymentStatusFromProvider maps a provider intent status to ours.
// Unrecognised statuses default to REQUIRES_CONFIRMATION.
func PaymentStatusFromProvider(status string) PaymentStatus {
	if s, ok := providerStatuses[status]; ok {
		return s
	}
	return PaymentRequiresConfirmation
}

// IntentKey is the idempotency key for the charge of an order
func IntentKey(orderID uuid.UUID) string {
	return fmt.Sprintf("pi_%s", orderID)
}
