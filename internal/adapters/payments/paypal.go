package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"live-auction-service/internal/ports/outbound"

	"github.com/plutov/paypal/v4"
	"github.com/rs/zerolog"
)

const (
	paypalIntentCapture = "CAPTURE"
	paypalReceiverType  = "PAYPAL_ID"

	// RequestIDHeader makes PayPal replay the first response for a repeated key
	RequestIDHeader = "PayPal-Request-Id"

	senderBatchIDField = "SENDER_BATCH_ID"
)

// paypal order status -> intent status understood by the order domain
var paypalOrderStatuses = map[string]string{
	"CREATED":               "requires_action",
	"SAVED":                 "requires_confirmation",
	"PAYER_ACTION_REQUIRED": "requires_action",
	"APPROVED":              "requires_capture",
	"COMPLETED":             "succeeded",
	"VOIDED":                "canceled",
}

// PayPal charges buyers with PayPal orders and pays sellers with payouts.
// Every call sends its idempotency key as PayPal-Request-Id. The transfer key
// is also the payout batch id; a batch id PayPal has already seen resolves to
// the original batch.
type PayPal struct {
	client *paypal.Client
	logger zerolog.Logger
}

type PayPalParams struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Logger       zerolog.Logger
}

func NewPayPal(params PayPalParams) (*PayPal, error) {
	base := params.BaseURL
	if base == "" {
		base = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(params.ClientID, params.ClientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}

	return &PayPal{
		client: client,
		logger: params.Logger.With().Str("component", "paypal_provider").Logger(),
	}, nil
}

func (p *PayPal) Name() string { return "paypal" }

func (p *PayPal) CreatePaymentIntent(ctx context.Context, req outbound.IntentRequest) (*outbound.Intent, error) {
	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: req.IdempotencyKey,
			CustomID:    req.Metadata["order_id"],
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(req.Currency),
				Value:    formatAmount(req.Amount),
			},
		},
	}

	created, err := p.client.CreateOrderWithPaypalRequestID(ctx, paypalIntentCapture, units, nil, nil, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal order: %w", err)
	}

	p.logger.Info().
		Str("paypal_order_id", created.ID).
		Str("status", created.Status).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("PayPal order created")

	return &outbound.Intent{
		ID:           created.ID,
		Status:       intentStatusFromPayPal(created.Status),
		ClientSecret: approvalURL(created),
	}, nil
}

func (p *PayPal) CreateTransfer(ctx context.Context, req outbound.TransferRequest) (*outbound.Transfer, error) {
	payout := paypal.Payout{
		SenderBatchHeader: &paypal.SenderBatchHeader{
			SenderBatchID: req.IdempotencyKey,
			EmailSubject:  "You have a payout",
		},
		Items: []paypal.PayoutItem{
			{
				RecipientType: paypalReceiverType,
				Receiver:      req.Destination,
				Amount: &paypal.AmountPayout{
					Currency: strings.ToUpper(req.Currency),
					Value:    formatAmount(req.Amount),
				},
				SenderItemID: req.IdempotencyKey,
			},
		},
	}

	resp, err := p.createPayout(ctx, payout, req.IdempotencyKey)
	if err != nil {
		batchID, ok := duplicateBatchID(err)
		if !ok {
			return nil, fmt.Errorf("failed to create paypal payout: %w", err)
		}
		p.logger.Warn().
			Str("payout_batch_id", batchID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("PayPal batch already exists, resolving original")
		if resp, err = p.client.GetPayout(ctx, batchID); err != nil {
			return nil, fmt.Errorf("failed to load existing paypal payout: %w", err)
		}
	}
	if resp.BatchHeader == nil || resp.BatchHeader.PayoutBatchID == "" {
		return nil, fmt.Errorf("paypal payout response has no batch id")
	}

	p.logger.Info().
		Str("payout_batch_id", resp.BatchHeader.PayoutBatchID).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("PayPal payout created")

	return &outbound.Transfer{ID: resp.BatchHeader.PayoutBatchID}, nil
}

// createPayout is CreatePayout with the request id header set
func (p *PayPal) createPayout(ctx context.Context, payout paypal.Payout, requestID string) (*paypal.PayoutResponse, error) {
	req, err := p.client.NewRequest(ctx, http.MethodPost, fmt.Sprintf("%s%s", p.client.APIBase, "/v1/payments/payouts"), payout)
	if err != nil {
		return nil, err
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp := &paypal.PayoutResponse{}
	if err := p.client.SendWithAuth(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// duplicateBatchID extracts the original batch id from PayPal's rejection of
// a reused sender_batch_id
func duplicateBatchID(err error) (string, bool) {
	var perr *paypal.ErrorResponse
	if !errors.As(err, &perr) {
		return "", false
	}
	for _, detail := range perr.Details {
		if !strings.EqualFold(detail.Field, senderBatchIDField) {
			continue
		}
		for _, link := range detail.Links {
			if id := path.Base(link.Href); link.Href != "" && id != "/" && id != "." {
				return id, true
			}
		}
	}
	return "", false
}

func intentStatusFromPayPal(status string) string {
	if s, ok := paypalOrderStatuses[strings.ToUpper(status)]; ok {
		return s
	}
	return "requires_confirmation"
}

// approvalURL is where the buyer approves the charge
func approvalURL(o *paypal.Order) string {
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

var _ outbound.PaymentProvider = (*PayPal)(nil)
