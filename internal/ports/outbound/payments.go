package outbound

import "context"

// IntentRequest asks the provider to charge the buyer
type IntentRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is the provider's view of a charge
type Intent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

// TransferRequest asks the provider to move funds to a seller
type TransferRequest struct {
	Amount         int64
	Currency       string
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Transfer is a completed provider transfer
type Transfer struct {
	ID string `json:"id"`
}

// PaymentProvider is the card-processing and transfer API. Every call carries
// an idempotency key so the provider can drop retried duplicates.
type PaymentProvider interface {
	Name() string
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// Notification is a fire-and-forget message for the notification collaborator
type Notification struct {
	Type    string                 `json:"type"`
	Subject string                 `json:"subject"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers notifications; callers log failures and carry on
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
