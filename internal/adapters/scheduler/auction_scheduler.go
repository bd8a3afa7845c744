package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	expirationsKey      = "auction:expirations"
	expirationBatchSize = 10
	defaultSweepEvery   = 30 * time.Second
	sweepBatchSize      = 100
)

// AuctionEndService is the part of the auction service the scheduler drives
type AuctionEndService interface {
	EndAuctionIfDue(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionEndResult, error)
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// AuctionScheduler closes auctions when their effective end passes. A Redis
// sorted set scored by close time in milliseconds gives prompt closing; a
// periodic database sweep catches anything the set missed.
type AuctionScheduler struct {
	redis          *redis.Client
	auctionService AuctionEndService
	sweepEvery     time.Duration
	inflight       map[uuid.UUID]struct{}
	mu             sync.Mutex
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type AuctionSchedulerParams struct {
	RedisClient    *redis.Client
	AuctionService AuctionEndService
	SweepInterval  time.Duration
	Logger         zerolog.Logger
}

func NewAuctionScheduler(params AuctionSchedulerParams) *AuctionScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	sweepEvery := params.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepEvery
	}

	return &AuctionScheduler{
		redis:          params.RedisClient,
		auctionService: params.AuctionService,
		sweepEvery:     sweepEvery,
		inflight:       make(map[uuid.UUID]struct{}),
		logger:         params.Logger.With().Str("component", "auction_scheduler").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ScheduleAuction adds an auction to the expiration schedule or moves it
func (s *AuctionScheduler) ScheduleAuction(ctx context.Context, auctionID uuid.UUID, at time.Time) error {
	err := s.redis.ZAdd(ctx, expirationsKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: auctionID.String(),
	}).Err()

	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule auction")
		return fmt.Errorf("failed to schedule auction: %w", err)
	}

	s.logger.Debug().
		Str("auction_id", auctionID.String()).
		Time("check_at", at).
		Msg("Auction scheduled for expiration")

	return nil
}

// Start begins the scheduler loop
func (s *AuctionScheduler) Start() {
	s.logger.Info().Dur("sweep_interval", s.sweepEvery).Msg("Starting auction scheduler")

	s.wg.Add(2)
	go s.schedulerLoop()
	go s.sweepLoop()
}

// Stop gracefully stops the scheduler
func (s *AuctionScheduler) Stop() {
	s.logger.Info().Msg("Stopping auction scheduler")
	s.cancel()
	s.wg.Wait()
}

// schedulerLoop runs the main scheduling loop
func (s *AuctionScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkExpiredAuctions()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

func (s *AuctionScheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.auctionService.SweepExpired(s.ctx, sweepBatchSize)
			if err != nil {
				s.logger.Error().Err(err).Msg("Auction sweep failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("transitioned", n).Msg("Auction sweep transitioned auctions")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// checkExpiredAuctions finds and processes expired auctions
func (s *AuctionScheduler) checkExpiredAuctions() {
	now := time.Now().UnixMilli()

	expiredAuctions, err := s.redis.ZRangeByScore(s.ctx, expirationsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: expirationBatchSize,
	}).Result()

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get expired auctions")
		return
	}

	if len(expiredAuctions) > 0 {
		s.logger.Debug().Int("count", len(expiredAuctions)).Msg("Found expired auctions")
	}

	for _, auctionIDStr := range expiredAuctions {
		auctionID, err := uuid.Parse(auctionIDStr)
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionIDStr).Msg("Invalid auction ID")
			s.redis.ZRem(s.ctx, expirationsKey, auctionIDStr)
			continue
		}
		if !s.claim(auctionID) {
			continue
		}

		s.wg.Add(1)
		go s.endAuction(auctionID)
	}
}

// claim keeps one end attempt per auction in flight on this instance
func (s *AuctionScheduler) claim(auctionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[auctionID]; busy {
		return false
	}
	s.inflight[auctionID] = struct{}{}
	return true
}

func (s *AuctionScheduler) release(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, auctionID)
}

// endAuction processes the end of an auction
func (s *AuctionScheduler) endAuction(auctionID uuid.UUID) {
	defer s.wg.Done()
	defer s.release(auctionID)

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Processing auction end")

	result, err := s.auctionService.EndAuctionIfDue(s.ctx, auctionID)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionAlreadyEnded) || errors.Is(err, shared.ErrAuctionNotFound) {
			s.redis.ZRem(s.ctx, expirationsKey, auctionID.String())
			return
		}
		// left in the set so the next tick retries
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to end auction")
		return
	}

	if result.Rescheduled {
		// the service already moved the entry to the new close time
		s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Auction extended, rescheduled")
		return
	}

	s.redis.ZRem(s.ctx, expirationsKey, auctionID.String())

	logger := s.logger.Info().Str("auction_id", auctionID.String())
	if result.WinnerID != nil {
		logger = logger.Str("winner_id", result.WinnerID.String())
	}
	if result.FinalPrice != nil {
		logger = logger.Int64("final_price", *result.FinalPrice)
	}
	logger.Msg("Auction ended successfully")
}
