package app

import (
	"context"
	"errors"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/fees"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/idempotency"
	"live-auction-service/internal/ports/inbound"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PurchaseService implements buy-now and payment retries
type PurchaseService struct {
	auctionRepo outbound.AuctionRepository
	orderRepo   outbound.OrderRepository
	provider    outbound.PaymentProvider
	caller      *idempotency.Caller
	effects     sideEffects
	now         func() time.Time
	logger      zerolog.Logger
}

type PurchaseServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	OrderRepo   outbound.OrderRepository
	Provider    outbound.PaymentProvider
	Caller      *idempotency.Caller
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(params PurchaseServiceParams) *PurchaseService {
	logger := params.Logger.With().Str("component", "purchase_service").Logger()
	return &PurchaseService{
		auctionRepo: params.AuctionRepo,
		orderRepo:   params.OrderRepo,
		provider:    params.Provider,
		caller:      params.Caller,
		effects:     sideEffects{broadcaster: params.Broadcaster, notifier: params.Notifier, logger: logger},
		now:         clockOrDefault(params.Now),
		logger:      logger,
	}
}

// BuyNow reserves the listing with a single active order and starts the
// charge. The order is committed before the provider is called; when the
// provider fails the payment is recorded FAILED, the order stays, and the
// call returns shared.ErrProviderUnavailable.
func (service *PurchaseService) BuyNow(ctx context.Context, req inbound.BuyNowRequest) (*inbound.PurchaseResult, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("buyer_id", req.BuyerID.String()).
		Msg("Attempting buy-now")

	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	now := service.now()
	switch {
	case !a.OffersBuyNow():
		return nil, shared.ErrBuyNowUnavailable
	case a.Status != auction.StatusLive:
		return nil, shared.ErrAuctionNotLive
	case req.BuyerID == a.SellerID:
		return nil, shared.ErrSelfPurchase
	case auction.HasEnded(a, now):
		return nil, shared.ErrAuctionEnded
	}

	if existing, err := service.orderRepo.ActiveForAuction(ctx, a.ID); err == nil {
		service.logger.Warn().
			Str("auction_id", a.ID.String()).
			Str("order_id", existing.ID.String()).
			Msg("Listing already has an active order")
		return nil, shared.ErrAlreadySold
	} else if !errors.Is(err, shared.ErrOrderNotFound) {
		return nil, err
	}

	price := *a.BuyNowPrice
	f := fees.ComputeFees(price)
	o := &order.Order{
		ID:            uuid.New(),
		AuctionID:     a.ID,
		BuyerID:       req.BuyerID,
		SellerID:      a.SellerID,
		Amount:        price,
		PlatformFee:   f.PlatformFee,
		ProcessingFee: f.ProcessingFee,
		Currency:      a.Currency,
		Status:        order.StatusRequiresPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p := &order.Payment{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Provider:  service.provider.Name(),
		Amount:    o.ChargeAmount(),
		Currency:  o.Currency,
		Status:    order.PaymentRequiresPaymentMethod,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := service.orderRepo.CreateWithPayment(ctx, o, p); err != nil {
		if errors.Is(err, shared.ErrAlreadySold) {
			service.logger.Warn().Str("auction_id", a.ID.String()).Msg("Lost buy-now race to another buyer")
			return nil, shared.ErrAlreadySold
		}
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to create order")
		return nil, err
	}

	service.logger.Info().
		Str("order_id", o.ID.String()).
		Int64("amount", o.Amount).
		Int64("charge_amount", p.Amount).
		Msg("Order created")

	result, err := service.charge(ctx, o, p)
	if err != nil {
		return nil, err
	}

	service.effects.publish(ctx, a.ID, outbound.EventTypeOrderSold, now, map[string]interface{}{
		"order_id": o.ID,
		"buyer_id": o.BuyerID,
		"amount":   o.Amount,
	})
	service.effects.notify(ctx, "order.created", o.ID.String(), map[string]interface{}{
		"auction_id": a.ID.String(),
		"buyer_id":   o.BuyerID.String(),
		"seller_id":  o.SellerID.String(),
	})

	return result, nil
}

// RetryPayment charges an order again after its payment failed or was
// canceled. The idempotency key stays pi_<orderId>, so a retry after a
// provider-side success replays that intent instead of charging twice.
func (service *PurchaseService) RetryPayment(ctx context.Context, orderID, buyerID uuid.UUID) (*inbound.PurchaseResult, error) {
	o, err := service.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, shared.ErrForbidden
	}
	if !o.IsActive() || o.Status != order.StatusRequiresPayment {
		return nil, shared.ErrPaymentNotRetryable
	}

	p, err := service.orderRepo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !p.CanRetry() {
		return nil, shared.ErrPaymentNotRetryable
	}

	service.logger.Info().
		Str("order_id", orderID.String()).
		Str("payment_status", string(p.Status)).
		Msg("Retrying payment")

	return service.charge(ctx, o, p)
}

func (service *PurchaseService) charge(ctx context.Context, o *order.Order, p *order.Payment) (*inbound.PurchaseResult, error) {
	key := order.IntentKey(o.ID)
	intent, replayed, err := idempotency.Do(ctx, service.caller, key, func(ctx context.Context, key string) (*outbound.Intent, error) {
		return service.provider.CreatePaymentIntent(ctx, outbound.IntentRequest{
			Amount:         p.Amount,
			Currency:       p.Currency,
			IdempotencyKey: key,
			Metadata: map[string]string{
				"order_id":   o.ID.String(),
				"auction_id": o.AuctionID.String(),
				"buyer_id":   o.BuyerID.String(),
			},
		})
	})

	now := service.now()
	if err != nil {
		service.logger.Error().Err(err).
			Str("order_id", o.ID.String()).
			Str("idempotency_key", key).
			Msg("Payment provider call failed")
		p.Status = order.PaymentFailed
		p.UpdatedAt = now
		if uerr := service.orderRepo.UpdatePayment(ctx, p); uerr != nil {
			service.logger.Error().Err(uerr).Str("order_id", o.ID.String()).Msg("Failed to record failed payment")
		}
		return nil, shared.ErrProviderUnavailable
	}

	intentID := intent.ID
	p.ProviderPaymentIntent = &intentID
	p.Status = order.PaymentStatusFromProvider(intent.Status)
	p.UpdatedAt = now
	if err := service.orderRepo.UpdatePayment(ctx, p); err != nil {
		service.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to store payment intent")
		return nil, err
	}

	if p.Status == order.PaymentSucceeded {
		paid, err := service.orderRepo.UpdateStatus(ctx, o.ID, order.StatusPaid, now, order.StatusPending, order.StatusRequiresPayment)
		if err != nil {
			return nil, err
		}
		if paid {
			o.Status = order.StatusPaid
			o.UpdatedAt = now
		}
	}

	service.logger.Info().
		Str("order_id", o.ID.String()).
		Str("intent_id", intent.ID).
		Str("payment_status", string(p.Status)).
		Bool("replayed", replayed).
		Msg("Payment intent created")

	return &inbound.PurchaseResult{Order: o, Payment: p, ClientSecret: intent.ClientSecret}, nil
}
