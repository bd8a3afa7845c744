package app

import (
	"context"
	"errors"
	"time"

	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/inbound"
	"live-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// SettlementService applies payment provider events to payments and orders.
// Every transition writes an absolute status, so replaying an event is safe.
type SettlementService struct {
	orderRepo  outbound.OrderRepository
	payoutRepo outbound.PayoutRepository
	effects    sideEffects
	now        func() time.Time
	logger     zerolog.Logger
}

type SettlementServiceParams struct {
	OrderRepo  outbound.OrderRepository
	PayoutRepo outbound.PayoutRepository
	Notifier   outbound.Notifier
	Now        func() time.Time
	Logger     zerolog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(params SettlementServiceParams) *SettlementService {
	logger := params.Logger.With().Str("component", "settlement_service").Logger()
	return &SettlementService{
		orderRepo:  params.OrderRepo,
		payoutRepo: params.PayoutRepo,
		effects:    sideEffects{notifier: params.Notifier, logger: logger},
		now:        clockOrDefault(params.Now),
		logger:     logger,
	}
}

// ApplyEvent matches the event to a payment by provider intent id. Unknown
// event types and unknown intents are logged and ignored.
func (service *SettlementService) ApplyEvent(ctx context.Context, event inbound.ProviderEvent) error {
	log := service.logger.With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Logger()

	var intentID string
	switch event.Type {
	case inbound.EventPaymentSucceeded, inbound.EventPaymentFailed:
		intentID = event.ObjectID
	case inbound.EventChargeRefunded:
		intentID = event.PaymentIntent
	default:
		log.Debug().Msg("Ignoring unhandled provider event")
		return nil
	}
	if intentID == "" {
		log.Warn().Msg("Provider event carries no payment intent")
		return nil
	}

	p, err := service.orderRepo.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, shared.ErrPaymentNotFound) {
			log.Warn().Str("intent_id", intentID).Msg("No payment for provider intent")
			return nil
		}
		return err
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = service.now()
	}

	switch event.Type {
	case inbound.EventPaymentSucceeded:
		return service.succeeded(ctx, p, at, log)
	case inbound.EventPaymentFailed:
		return service.failed(ctx, p, at, log)
	default:
		return service.refunded(ctx, p, at, log)
	}
}

func (service *SettlementService) succeeded(ctx context.Context, p *order.Payment, at time.Time, log zerolog.Logger) error {
	if p.Status == order.PaymentRefunded {
		log.Info().Str("order_id", p.OrderID.String()).Msg("Payment already refunded, ignoring success")
		return nil
	}
	p.Status = order.PaymentSucceeded
	p.UpdatedAt = at
	if err := service.orderRepo.UpdatePayment(ctx, p); err != nil {
		return err
	}
	// later states already imply payment
	paid, err := service.orderRepo.UpdateStatus(ctx, p.OrderID, order.StatusPaid, at, order.StatusPending, order.StatusRequiresPayment)
	if err != nil {
		return err
	}
	log.Info().Str("order_id", p.OrderID.String()).Bool("order_updated", paid).Msg("Payment succeeded")
	if paid {
		service.effects.notify(ctx, "order.paid", p.OrderID.String(), nil)
	}
	return nil
}

func (service *SettlementService) failed(ctx context.Context, p *order.Payment, at time.Time, log zerolog.Logger) error {
	if p.Status == order.PaymentSucceeded || p.Status == order.PaymentRefunded {
		log.Info().
			Str("order_id", p.OrderID.String()).
			Str("payment_status", string(p.Status)).
			Msg("Ignoring failure for settled payment")
		return nil
	}
	p.Status = order.PaymentFailed
	p.UpdatedAt = at
	if err := service.orderRepo.UpdatePayment(ctx, p); err != nil {
		return err
	}
	log.Info().Str("order_id", p.OrderID.String()).Msg("Payment failed")
	service.effects.notify(ctx, "payment.failed", p.OrderID.String(), nil)
	return nil
}

func (service *SettlementService) refunded(ctx context.Context, p *order.Payment, at time.Time, log zerolog.Logger) error {
	refundedAt := at
	if p.RefundedAt != nil {
		refundedAt = *p.RefundedAt
	}
	p.Status = order.PaymentRefunded
	p.RefundedAt = &refundedAt
	p.UpdatedAt = at
	if err := service.orderRepo.UpdatePayment(ctx, p); err != nil {
		return err
	}
	if _, err := service.orderRepo.UpdateStatus(ctx, p.OrderID, order.StatusRefunded, at); err != nil {
		return err
	}
	// a refund inside the holding period stops the seller's disbursement
	canceled, err := service.payoutRepo.Cancel(ctx, p.OrderID, payoutCanceledReason(order.StatusRefunded), at)
	if err != nil {
		return err
	}
	log.Info().
		Str("order_id", p.OrderID.String()).
		Time("refunded_at", refundedAt).
		Bool("payout_canceled", canceled).
		Msg("Charge refunded")
	service.effects.notify(ctx, "order.refunded", p.OrderID.String(), nil)
	return nil
}
