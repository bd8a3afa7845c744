package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-auction-service/internal/adapters/broadcaster"
	"live-auction-service/internal/adapters/memory"
	"live-auction-service/internal/adapters/payments"
	"live-auction-service/internal/app"
	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/idempotency"
	"live-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

type apiFixture struct {
	store    *memory.Store
	provider *payments.Sandbox
	router   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zerolog.Nop()
	store := memory.NewStore()
	provider := payments.NewSandbox(payments.SandboxParams{Logger: logger})
	caller := idempotency.NewCaller(idempotency.CallerParams{Store: store.IdempotencyStore(), Logger: logger})
	events := broadcaster.NewLocalBroadcaster(logger)

	handler := NewHandler(HandlerParams{
		AuctionService: app.NewAuctionService(app.AuctionServiceParams{
			AuctionRepo: store.GetAuctionRepository(),
			BidRepo:     store.GetBidRepository(),
			Broadcaster: events,
			Logger:      logger,
		}),
		BidService: app.NewBidService(app.BidServiceParams{
			BidRepo:     store.GetBidRepository(),
			AuctionRepo: store.GetAuctionRepository(),
			UserRepo:    store.GetUserRepository(),
			Broadcaster: events,
			Logger:      logger,
		}),
		PurchaseService: app.NewPurchaseService(app.PurchaseServiceParams{
			AuctionRepo: store.GetAuctionRepository(),
			OrderRepo:   store.GetOrderRepository(),
			Provider:    provider,
			Caller:      caller,
			Broadcaster: events,
			Logger:      logger,
		}),
		SettlementService: app.NewSettlementService(app.SettlementServiceParams{
			OrderRepo:  store.GetOrderRepository(),
			PayoutRepo: store.GetPayoutRepository(),
			Logger:     logger,
		}),
		PayoutService: app.NewPayoutService(app.PayoutServiceParams{
			OrderRepo:  store.GetOrderRepository(),
			PayoutRepo: store.GetPayoutRepository(),
			UserRepo:   store.GetUserRepository(),
			Provider:   provider,
			Caller:     caller,
			HoldDays:   0,
			Logger:     logger,
		}),
		WebhookSecret: testSecret,
		Logger:        logger,
	})

	return &apiFixture{store: store, provider: provider, router: handler.SetupRoutes()}
}

func (f *apiFixture) user(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.store.GetUserRepository().Create(context.Background(), &shared.User{ID: id, Name: "viewer"}))
	return id
}

func (f *apiFixture) seller(t *testing.T) uuid.UUID {
	t.Helper()
	id := f.user(t)
	dest := "acct_seller"
	f.store.PutSeller(shared.Seller{ID: id, PayoutsEnabled: true, TransferDestination: &dest})
	return id
}

func (f *apiFixture) listing(t *testing.T, sellerID uuid.UUID, buyNow *int64) *auction.Auction {
	t.Helper()
	now := time.Now()
	end := now.Add(10 * time.Minute)
	a := &auction.Auction{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Status:           auction.StatusLive,
		ListingType:      auction.ListingAuction,
		CurrentBid:       10000,
		MinBidIncrement:  2000,
		StartTime:        now.Add(-time.Hour),
		EndTime:          &end,
		AntiSnipeSeconds: 12,
		Currency:         "usd",
		CreatedAt:        now.Add(-time.Hour),
		UpdatedAt:        now.Add(-time.Hour),
	}
	if buyNow != nil {
		a.ListingType = auction.ListingBoth
		a.BuyNowPrice = buyNow
	}
	require.NoError(t, f.store.GetAuctionRepository().Create(context.Background(), a))
	return a
}

func (f *apiFixture) do(method, path string, userID *uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != nil {
		req.Header.Set(UserIDHeader, userID.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) webhook(t *testing.T, payload map[string]interface{}, signature string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(raw))
	if signature == "" {
		signature = Sign(testSecret, raw)
	}
	req.Header.Set(SignatureHeader, signature)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func succeededEvent(intentID string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "evt_" + intentID,
		"type":    string(inbound.EventPaymentSucceeded),
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": map[string]interface{}{"id": intentID}},
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestPlaceBid_StatusCodes(t *testing.T) {
	f := newAPIFixture(t)
	sellerID := f.seller(t)
	bidder := f.user(t)
	a := f.listing(t, sellerID, nil)
	path := fmt.Sprintf("/api/v1/auctions/%s/bids", a.ID)

	t.Run("missing caller", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, nil, placeBidBody{Amount: 12000})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, shared.KindUnauthenticated, decodeError(t, rec).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, &bidder, "twelve thousand")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("below minimum", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, &bidder, placeBidBody{Amount: 11000})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, shared.ErrBidTooLow.Error(), decodeError(t, rec).Error)
	})

	t.Run("seller bidding", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, &sellerID, placeBidBody{Amount: 12000})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown auction", func(t *testing.T) {
		rec := f.do(http.MethodPost, fmt.Sprintf("/api/v1/auctions/%s/bids", uuid.New()), &bidder, placeBidBody{Amount: 12000})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("accepted", func(t *testing.T) {
		rec := f.do(http.MethodPost, path, &bidder, placeBidBody{Amount: 12000})
		require.Equal(t, http.StatusCreated, rec.Code)

		var result inbound.BidResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, int64(12000), result.Auction.CurrentBid)
		assert.Equal(t, bidder, result.Bid.BidderID)
	})

	t.Run("bid history", func(t *testing.T) {
		rec := f.do(http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"count":1`)
	})
}

func TestGetAuction_BadID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/auctions/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyNow_ThenSecondBuyerConflicts(t *testing.T) {
	f := newAPIFixture(t)
	sellerID := f.seller(t)
	price := int64(15000)
	a := f.listing(t, sellerID, &price)
	path := fmt.Sprintf("/api/v1/auctions/%s/buy-now", a.ID)

	first, second := f.user(t), f.user(t)

	rec := f.do(http.MethodPost, path, &first, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result inbound.PurchaseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, order.StatusRequiresPayment, result.Order.Status)
	assert.Equal(t, price, result.Order.Amount)
	assert.NotEmpty(t, result.ClientSecret)

	rec = f.do(http.MethodPost, path, &second, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, shared.ErrAlreadySold.Error(), decodeError(t, rec).Error)
}

func TestWebhook_Signature(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.webhook(t, succeededEvent("pi_unknown"), "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.webhook(t, succeededEvent("pi_unknown"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_UnknownTypeAcknowledged(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.webhook(t, map[string]interface{}{"id": "evt_1", "type": "customer.created"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchaseToPayout(t *testing.T) {
	f := newAPIFixture(t)
	sellerID := f.seller(t)
	buyer := f.user(t)
	price := int64(20000)
	a := f.listing(t, sellerID, &price)

	rec := f.do(http.MethodPost, fmt.Sprintf("/api/v1/auctions/%s/buy-now", a.ID), &buyer, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var purchase inbound.PurchaseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &purchase))
	require.NotNil(t, purchase.Payment.ProviderPaymentIntent)
	orderID := purchase.Order.ID

	// confirming before payment settles is refused
	rec = f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), &buyer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	event := succeededEvent(*purchase.Payment.ProviderPaymentIntent)
	require.Equal(t, http.StatusOK, f.webhook(t, event, "").Code)
	require.Equal(t, http.StatusOK, f.webhook(t, event, "").Code)

	o, err := f.store.GetOrderRepository().GetByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)

	rec = f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/delivered", orderID), &buyer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/delivered", orderID), &sellerID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), &sellerID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), &buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var confirm inbound.ConfirmResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirm))
	assert.Equal(t, order.StatusConfirmed, confirm.Order.Status)
	require.NotNil(t, confirm.Payout)
	assert.Equal(t, payout.StatusPaid, confirm.Payout.Status)
	assert.Equal(t, 1, f.provider.TransferCount())

	rec = f.do(http.MethodPost, "/admin/payouts/sweep?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sweep inbound.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sweep))
	assert.Zero(t, sweep.Selected)
	assert.Equal(t, 1, f.provider.TransferCount())
}

func TestCancelAuction(t *testing.T) {
	f := newAPIFixture(t)
	sellerID := f.seller(t)
	other := f.user(t)
	a := f.listing(t, sellerID, nil)
	path := fmt.Sprintf("/api/v1/auctions/%s/cancel", a.ID)

	rec := f.do(http.MethodPost, path, &other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, path, &sellerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var canceled auction.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &canceled))
	assert.Equal(t, auction.StatusCanceled, canceled.Status)
}

func TestSweepPayouts_BadLimit(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/admin/payouts/sweep?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
