package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const defaultSweepLimit = 50

// Handler contains HTTP request handlers
type Handler struct {
	auctionService    inbound.AuctionService
	bidService        inbound.BidService
	purchaseService   inbound.PurchaseService
	settlementService inbound.SettlementService
	payoutService     inbound.PayoutService
	liveHandler       http.HandlerFunc
	webhookSecret     string
	sweepLimit        int
	logger            zerolog.Logger
}

type HandlerParams struct {
	AuctionService    inbound.AuctionService
	BidService        inbound.BidService
	PurchaseService   inbound.PurchaseService
	SettlementService inbound.SettlementService
	PayoutService     inbound.PayoutService
	// LiveHandler serves the websocket endpoint when set
	LiveHandler   http.HandlerFunc
	WebhookSecret string
	SweepLimit    int
	Logger        zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(params HandlerParams) *Handler {
	limit := params.SweepLimit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &Handler{
		auctionService:    params.AuctionService,
		bidService:        params.BidService,
		purchaseService:   params.PurchaseService,
		settlementService: params.SettlementService,
		payoutService:     params.PayoutService,
		liveHandler:       params.LiveHandler,
		webhookSecret:     params.WebhookSecret,
		sweepLimit:        limit,
		logger:            params.Logger.With().Str("component", "http_handler").Logger(),
	}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if h.liveHandler != nil {
		router.HandleFunc("/ws", h.liveHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions/{id}", h.GetAuction).Methods(http.MethodGet)
	api.HandleFunc("/auctions/{id}/bids", h.GetBids).Methods(http.MethodGet)
	api.HandleFunc("/auctions/{id}/bids", h.PlaceBid).Methods(http.MethodPost)
	api.HandleFunc("/auctions/{id}/buy-now", h.BuyNow).Methods(http.MethodPost)
	api.HandleFunc("/auctions/{id}/cancel", h.CancelAuction).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/retry-payment", h.RetryPayment).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/delivered", h.MarkDelivered).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/confirm", h.ConfirmOrder).Methods(http.MethodPost)

	router.HandleFunc("/webhooks/payments", h.PaymentWebhook).Methods(http.MethodPost)
	router.HandleFunc("/admin/payouts/sweep", h.SweepPayouts).Methods(http.MethodPost)

	router.Use(recoverMiddleware(h.logger))
	router.Use(loggingMiddleware(h.logger))
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "live-auction-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetAuction returns the current state of a listing
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	a, err := h.auctionService.GetAuction(r.Context(), auctionID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// GetBids returns a listing's bids, highest first
func (h *Handler) GetBids(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	bids, err := h.bidService.GetBids(r.Context(), auctionID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": bids, "count": len(bids)})
}

type placeBidBody struct {
	Amount int64 `json:"amount"`
}

// PlaceBid handles bid placement requests
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, auctionID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	var body placeBidBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, h.logger, shared.ErrInvalidRequest)
		return
	}

	result, err := h.bidService.PlaceBid(r.Context(), inbound.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  userID,
		Amount:    body.Amount,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// BuyNow purchases a listing at its fixed price
func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	userID, auctionID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	result, err := h.purchaseService.BuyNow(r.Context(), inbound.BuyNowRequest{
		AuctionID: auctionID,
		BuyerID:   userID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// CancelAuction cancels a listing on behalf of its seller
func (h *Handler) CancelAuction(w http.ResponseWriter, r *http.Request) {
	userID, auctionID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	a, err := h.auctionService.CancelAuction(r.Context(), auctionID, userID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// RetryPayment starts a new charge attempt for the buyer's order
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	userID, orderID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	result, err := h.purchaseService.RetryPayment(r.Context(), orderID, userID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// MarkDelivered records the seller's shipment of a paid order
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	userID, orderID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	o, err := h.payoutService.MarkDelivered(r.Context(), orderID, userID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ConfirmOrder is the buyer's confirmation of receipt
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	userID, orderID, ok := h.callerAndPathID(w, r)
	if !ok {
		return
	}

	result, err := h.payoutService.ConfirmOrder(r.Context(), inbound.ConfirmOrderRequest{
		OrderID: orderID,
		BuyerID: userID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SweepPayouts runs one payout sweep on demand
func (h *Handler) SweepPayouts(w http.ResponseWriter, r *http.Request) {
	limit := h.sweepLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, h.logger, shared.ErrInvalidRequest)
			return
		}
		limit = n
	}

	result, err := h.payoutService.DisburseDue(r.Context(), limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, shared.ErrInvalidRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) callerAndPathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := callerID(r)
	if !ok {
		respondError(w, h.logger, shared.ErrUnauthenticated)
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
