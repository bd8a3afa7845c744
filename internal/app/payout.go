package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"live-auction-service/internal/domain/fees"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/idempotency"
	"live-auction-service/internal/ports/inbound"
	"live-auction-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPayoutHoldDays   = 7
	defaultPayoutBatchSize  = 50
	defaultDisburseWorkers  = 4
	disburseQueueMultiplier = 4
)

// payoutCanceledReason is the failure reason of a payout whose order left CONFIRMED
func payoutCanceledReason(status order.Status) string {
	return "order " + strings.ToLower(string(status))
}

type disburseOutcome int

const (
	disbursePaid disburseOutcome = iota
	disburseSkipped
	disburseFailed
)

// PayoutService implements order delivery, buyer confirmation and seller
// disbursement. A payout is never transferred twice: the transfer call is
// keyed by payout_<orderId> and the transfer id is written once.
type PayoutService struct {
	orderRepo  outbound.OrderRepository
	payoutRepo outbound.PayoutRepository
	userRepo   outbound.UserRepository
	provider   outbound.PaymentProvider
	caller     *idempotency.Caller
	pool       *pond.WorkerPool
	holdDays   int
	effects    sideEffects
	now        func() time.Time
	logger     zerolog.Logger
}

type PayoutServiceParams struct {
	OrderRepo  outbound.OrderRepository
	PayoutRepo outbound.PayoutRepository
	UserRepo   outbound.UserRepository
	Provider   outbound.PaymentProvider
	Caller     *idempotency.Caller
	// Pool runs sweep transfers; nil creates a small private pool
	Pool     *pond.WorkerPool
	HoldDays int
	Notifier outbound.Notifier
	Now      func() time.Time
	Logger   zerolog.Logger
}

// NewPayoutService creates a new payout service. A negative HoldDays is
// treated as zero.
func NewPayoutService(params PayoutServiceParams) *PayoutService {
	logger := params.Logger.With().Str("component", "payout_service").Logger()
	pool := params.Pool
	if pool == nil {
		pool = pond.New(defaultDisburseWorkers, defaultDisburseWorkers*disburseQueueMultiplier)
	}
	holdDays := params.HoldDays
	if holdDays < 0 {
		holdDays = 0
	}
	return &PayoutService{
		orderRepo:  params.OrderRepo,
		payoutRepo: params.PayoutRepo,
		userRepo:   params.UserRepo,
		provider:   params.Provider,
		caller:     params.Caller,
		pool:       pool,
		holdDays:   holdDays,
		effects:    sideEffects{notifier: params.Notifier, logger: logger},
		now:        clockOrDefault(params.Now),
		logger:     logger,
	}
}

// MarkDelivered moves a PAID order to DELIVERED for its seller
func (service *PayoutService) MarkDelivered(ctx context.Context, orderID, sellerID uuid.UUID) (*order.Order, error) {
	o, err := service.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sellerID {
		return nil, shared.ErrForbidden
	}
	if o.Status == order.StatusDelivered {
		return o, nil
	}
	if o.Status != order.StatusPaid {
		return nil, shared.ErrOrderNotDeliverable
	}

	now := service.now()
	moved, err := service.orderRepo.UpdateStatus(ctx, orderID, order.StatusDelivered, now, order.StatusPaid)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, shared.ErrOrderNotDeliverable
	}
	o.Status = order.StatusDelivered
	o.UpdatedAt = now

	service.logger.Info().Str("order_id", orderID.String()).Msg("Order delivered")
	service.effects.notify(ctx, "order.delivered", orderID.String(), map[string]interface{}{
		"buyer_id": o.BuyerID.String(),
	})
	return o, nil
}

// ConfirmOrder confirms receipt for the buyer, creates the seller's payout
// and transfers it right away when the payout is due and the seller can
// receive transfers. Transfer failures leave the payout PENDING for the sweep
// and are not reported to the buyer.
func (service *PayoutService) ConfirmOrder(ctx context.Context, req inbound.ConfirmOrderRequest) (*inbound.ConfirmResult, error) {
	o, err := service.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != req.BuyerID {
		service.logger.Warn().
			Str("order_id", req.OrderID.String()).
			Str("user_id", req.BuyerID.String()).
			Msg("Non-buyer attempted to confirm order")
		return nil, shared.ErrForbidden
	}

	if o.Status == order.StatusConfirmed {
		return service.alreadyConfirmed(ctx, o)
	}
	if !o.CanConfirm() {
		return nil, shared.ErrOrderNotConfirmable
	}

	now := service.now()
	candidate := &payout.Payout{
		ID:          uuid.New(),
		OrderID:     o.ID,
		SellerID:    o.SellerID,
		Amount:      fees.SellerNet(o.Amount, o.PlatformFee),
		Currency:    o.Currency,
		Status:      payout.StatusPending,
		ScheduledAt: now.Add(time.Duration(service.holdDays) * 24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	p, confirmed, err := service.orderRepo.Confirm(ctx, o.ID, now, candidate)
	if err != nil {
		service.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to confirm order")
		return nil, err
	}
	if !confirmed {
		// a concurrent confirmation won
		fresh, err := service.orderRepo.GetByID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if fresh.Status != order.StatusConfirmed {
			return nil, shared.ErrOrderNotConfirmable
		}
		return service.alreadyConfirmed(ctx, fresh)
	}

	o.Status = order.StatusConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now

	service.logger.Info().
		Str("order_id", o.ID.String()).
		Str("payout_id", p.ID.String()).
		Int64("seller_net", p.Amount).
		Time("scheduled_at", p.ScheduledAt).
		Msg("Order confirmed")
	service.effects.notify(ctx, "order.confirmed", o.ID.String(), map[string]interface{}{
		"seller_id": o.SellerID.String(),
	})

	result := &inbound.ConfirmResult{Order: o, Payout: p}
	if p.Settled() {
		return result, nil
	}

	outcome, attempted := service.disburse(ctx, p)
	result.TransferAttempted = attempted
	if outcome == disbursePaid {
		if fresh, err := service.payoutRepo.GetByOrderID(ctx, o.ID); err == nil {
			result.Payout = fresh
		}
	}
	return result, nil
}

func (service *PayoutService) alreadyConfirmed(ctx context.Context, o *order.Order) (*inbound.ConfirmResult, error) {
	result := &inbound.ConfirmResult{Order: o, AlreadyConfirmed: true}
	p, err := service.payoutRepo.GetByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		result.Payout = p
	case !errors.Is(err, shared.ErrPayoutNotFound):
		return nil, err
	}
	return result, nil
}

// DisburseDue transfers due pending payouts, oldest first, at most limit of
// them. Transfers run on the worker pool; each is independently idempotent,
// so overlapping sweeps are safe.
func (service *PayoutService) DisburseDue(ctx context.Context, limit int) (*inbound.SweepResult, error) {
	if limit <= 0 {
		limit = defaultPayoutBatchSize
	}
	due, err := service.payoutRepo.ListDue(ctx, service.now(), limit)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to list due payouts")
		return nil, err
	}

	var paid, skipped, failed int64
	group := service.pool.Group()
	for _, p := range due {
		p := p
		group.Submit(func() {
			outcome, _ := service.disburse(ctx, p)
			switch outcome {
			case disbursePaid:
				atomic.AddInt64(&paid, 1)
			case disburseSkipped:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		})
	}
	group.Wait()

	result := &inbound.SweepResult{
		Selected: len(due),
		Paid:     int(paid),
		Skipped:  int(skipped),
		Failed:   int(failed),
	}
	service.logger.Info().
		Int("selected", result.Selected).
		Int("paid", result.Paid).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Payout sweep finished")
	return result, nil
}

// disburse runs the transfer step for one pending payout. The bool reports
// whether the provider was called.
func (service *PayoutService) disburse(ctx context.Context, p *payout.Payout) (disburseOutcome, bool) {
	log := service.logger.With().
		Str("payout_id", p.ID.String()).
		Str("order_id", p.OrderID.String()).
		Str("seller_id", p.SellerID.String()).
		Logger()

	now := service.now()
	if p.Settled() || !p.IsDue(now) || p.Amount <= 0 {
		return disburseSkipped, false
	}

	o, err := service.orderRepo.GetByID(ctx, p.OrderID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load order for payout")
		return disburseFailed, false
	}
	if o.Status != order.StatusConfirmed {
		if _, err := service.payoutRepo.Cancel(ctx, p.OrderID, payoutCanceledReason(o.Status), now); err != nil {
			log.Error().Err(err).Msg("Failed to cancel payout of unconfirmed order")
		}
		log.Warn().Str("order_status", string(o.Status)).Msg("Order no longer confirmed, payout canceled")
		return disburseSkipped, false
	}

	seller, err := service.userRepo.GetSeller(ctx, p.SellerID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load seller for payout")
		return disburseFailed, false
	}
	if !seller.CanReceiveTransfers() {
		log.Info().Msg("Seller cannot receive transfers yet, payout stays pending")
		return disburseSkipped, false
	}

	key := payout.TransferKey(p.OrderID)
	transfer, replayed, err := idempotency.Do(ctx, service.caller, key, func(ctx context.Context, key string) (*outbound.Transfer, error) {
		return service.provider.CreateTransfer(ctx, outbound.TransferRequest{
			Amount:         p.Amount,
			Currency:       p.Currency,
			Destination:    *seller.TransferDestination,
			IdempotencyKey: key,
			Metadata: map[string]string{
				"order_id":  p.OrderID.String(),
				"payout_id": p.ID.String(),
			},
		})
	})
	if err != nil {
		log.Error().Err(err).
			Bool("needs_operator", true).
			Str("idempotency_key", key).
			Msg("Payout transfer failed, left pending")
		if recorded, rerr := service.payoutRepo.RecordFailure(ctx, p.ID, err.Error(), now); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to record payout failure")
		} else if !recorded {
			log.Info().Msg("Payout settled concurrently, failure not recorded")
		}
		service.effects.notify(ctx, "payout.failed", p.OrderID.String(), map[string]interface{}{
			"seller_id": p.SellerID.String(),
			"reason":    err.Error(),
		})
		return disburseFailed, true
	}

	marked, err := service.payoutRepo.MarkPaid(ctx, p.ID, transfer.ID, now)
	if err != nil {
		log.Error().Err(err).
			Bool("needs_operator", true).
			Str("transfer_id", transfer.ID).
			Msg("Transfer succeeded but payout could not be marked paid")
		return disburseFailed, true
	}
	if !marked {
		log.Info().Str("transfer_id", transfer.ID).Msg("Payout already settled by a concurrent transfer")
		return disburseSkipped, true
	}

	log.Info().
		Str("transfer_id", transfer.ID).
		Int64("amount", p.Amount).
		Bool("replayed", replayed).
		Msg("Payout transferred")
	service.effects.notify(ctx, "payout.paid", p.OrderID.String(), map[string]interface{}{
		"seller_id":   p.SellerID.String(),
		"transfer_id": transfer.ID,
		"amount":      p.Amount,
	})
	return disbursePaid, true
}
