package scheduler

import (
	"context"
	"sync"
	"time"

	"live-auction-service/internal/ports/inbound"

	"github.com/rs/zerolog"
)

const defaultPayoutSweepEvery = 10 * time.Minute

// PayoutSweeper periodically retries due pending payouts. Each transfer is
// idempotency-keyed, so overlapping sweeps across instances are harmless.
type PayoutSweeper struct {
	payouts   inbound.PayoutService
	every     time.Duration
	batchSize int
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type PayoutSweeperParams struct {
	PayoutService inbound.PayoutService
	Interval      time.Duration
	BatchSize     int
	Logger        zerolog.Logger
}

func NewPayoutSweeper(params PayoutSweeperParams) *PayoutSweeper {
	ctx, cancel := context.WithCancel(context.Background())

	every := params.Interval
	if every <= 0 {
		every = defaultPayoutSweepEvery
	}

	return &PayoutSweeper{
		payouts:   params.PayoutService,
		every:     every,
		batchSize: params.BatchSize,
		logger:    params.Logger.With().Str("component", "payout_sweeper").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the sweep loop
func (s *PayoutSweeper) Start() {
	s.logger.Info().Dur("interval", s.every).Int("batch_size", s.batchSize).Msg("Starting payout sweeper")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.SweepOnce(s.ctx)
			case <-s.ctx.Done():
				s.logger.Info().Msg("Payout sweeper stopped")
				return
			}
		}
	}()
}

// SweepOnce runs a single sweep and logs its outcome
func (s *PayoutSweeper) SweepOnce(ctx context.Context) {
	result, err := s.payouts.DisburseDue(ctx, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Payout sweep failed")
		return
	}
	if result.Failed > 0 {
		s.logger.Warn().Int("failed", result.Failed).Msg("Some payouts still need attention")
	}
}

// Stop gracefully stops the sweeper
func (s *PayoutSweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}
