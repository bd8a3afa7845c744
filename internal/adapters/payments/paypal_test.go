package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePayPal replays responses by PayPal-Request-Id the way the live API does
type fakePayPal struct {
	mu         sync.Mutex
	server     *httptest.Server
	requestIDs []string
	orders     map[string]string
	batches    map[string]string
	// knownBatches are sender_batch_ids PayPal already processed, keyed to the
	// batch id it assigned, as if an earlier response was lost
	knownBatches map[string]string
}

func newFakePayPal(t *testing.T) *fakePayPal {
	f := &fakePayPal{
		orders:       make(map[string]string),
		batches:      make(map[string]string),
		knownBatches: make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePayPal) provider(t *testing.T) *PayPal {
	p, err := NewPayPal(PayPalParams{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      f.server.URL,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func (f *fakePayPal) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/oauth2/token":
		fmt.Fprint(w, `{"access_token":"token","token_type":"Bearer","expires_in":3600}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
		requestID := r.Header.Get(RequestIDHeader)
		f.requestIDs = append(f.requestIDs, requestID)
		id, ok := f.orders[requestID]
		if !ok || requestID == "" {
			id = fmt.Sprintf("ORDER%d", len(f.orders)+1)
			f.orders[requestID] = id
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%q,"status":"PAYER_ACTION_REQUIRED","links":[{"href":"https://paypal.test/approve/%s","rel":"payer-action"}]}`, id, id)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/payments/payouts":
		requestID := r.Header.Get(RequestIDHeader)
		f.requestIDs = append(f.requestIDs, requestID)
		var body struct {
			SenderBatchHeader struct {
				SenderBatchID string `json:"sender_batch_id"`
			} `json:"sender_batch_header"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		senderBatchID := body.SenderBatchHeader.SenderBatchID

		if id, ok := f.batches[requestID]; ok {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"batch_header":{"payout_batch_id":%q,"batch_status":"PENDING"}}`, id)
			return
		}
		if id, ok := f.knownBatches[senderBatchID]; ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"name":"USER_BUSINESS_ERROR","message":"User business error.","debug_id":"dbg","details":[{"field":"SENDER_BATCH_ID","issue":"Batch with given sender_batch_id already exists","link":[{"href":"%s/v1/payments/payouts/%s","rel":"self","method":"GET"}]}]}`, f.server.URL, id)
			return
		}
		id := fmt.Sprintf("BATCH%d", len(f.batches)+1)
		f.batches[requestID] = id
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"batch_header":{"payout_batch_id":%q,"batch_status":"PENDING"}}`, id)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payments/payouts/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/payments/payouts/")
		fmt.Fprintf(w, `{"batch_header":{"payout_batch_id":%q,"batch_status":"SUCCESS"}}`, id)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"name":"RESOURCE_NOT_FOUND","message":"not found"}`)
	}
}

func TestPayPal_IntentSendsRequestID(t *testing.T) {
	ctx := context.Background()
	fake := newFakePayPal(t)
	p := fake.provider(t)

	req := outbound.IntentRequest{Amount: 12000, Currency: "usd", IdempotencyKey: "pi_order-1"}
	first, err := p.CreatePaymentIntent(ctx, req)
	require.NoError(t, err)
	second, err := p.CreatePaymentIntent(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"pi_order-1", "pi_order-1"}, fake.requestIDs)
	assert.Len(t, fake.orders, 1)
	assert.Equal(t, order.PaymentRequiresConfirmation, order.PaymentStatusFromProvider(first.Status))
	assert.Equal(t, "https://paypal.test/approve/"+first.ID, first.ClientSecret)
}

func TestPayPal_TransferSendsRequestID(t *testing.T) {
	ctx := context.Background()
	fake := newFakePayPal(t)
	p := fake.provider(t)

	req := outbound.TransferRequest{Amount: 9000, Currency: "usd", Destination: "SELLER1", IdempotencyKey: "payout_order-1"}
	first, err := p.CreateTransfer(ctx, req)
	require.NoError(t, err)
	second, err := p.CreateTransfer(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"payout_order-1", "payout_order-1"}, fake.requestIDs)
	assert.Len(t, fake.batches, 1)
}

func TestPayPal_TransferResolvesExistingBatch(t *testing.T) {
	fake := newFakePayPal(t)
	fake.knownBatches["payout_order-1"] = "CR9VS2K4X4846"
	p := fake.provider(t)

	transfer, err := p.CreateTransfer(context.Background(), outbound.TransferRequest{
		Amount: 9000, Currency: "usd", Destination: "SELLER1", IdempotencyKey: "payout_order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "CR9VS2K4X4846", transfer.ID)
	assert.Empty(t, fake.batches)
}

func TestPayPal_TransferOtherErrorsFail(t *testing.T) {
	fake := newFakePayPal(t)
	p := fake.provider(t)
	fake.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			fmt.Fprint(w, `{"access_token":"token","expires_in":3600}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"name":"INSUFFICIENT_FUNDS","message":"Sender does not have sufficient funds."}`)
	})

	_, err := p.CreateTransfer(context.Background(), outbound.TransferRequest{
		Amount: 9000, Currency: "usd", Destination: "SELLER1", IdempotencyKey: "payout_order-2",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create paypal payout")
}
