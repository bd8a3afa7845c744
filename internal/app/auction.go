package app

import (
	"context"
	"errors"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultSweepLimit = 100

// AuctionService implements the auction lifecycle use cases and
// scheduler.AuctionEndService
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	schedule    outbound.ExpirationSchedule
	effects     sideEffects
	now         func() time.Time
	logger      zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Schedule    outbound.ExpirationSchedule
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	logger := params.Logger.With().Str("component", "auction_service").Logger()
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		schedule:    params.Schedule,
		effects:     sideEffects{broadcaster: params.Broadcaster, notifier: params.Notifier, logger: logger},
		now:         clockOrDefault(params.Now),
		logger:      logger,
	}
}

// SetSchedule sets the expiration schedule once the scheduler exists; the
// scheduler itself needs the service, so main wires them in two steps.
func (service *AuctionService) SetSchedule(schedule outbound.ExpirationSchedule) {
	service.schedule = schedule
}

// GetAuction retrieves an auction by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	service.logger.Debug().Str("auction_id", auctionID.String()).Msg("Retrieving auction")

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		if !errors.Is(err, shared.ErrAuctionNotFound) {
			service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction")
		}
		return nil, err
	}

	service.logger.Debug().
		Str("auction_id", a.ID.String()).
		Str("auction_status", string(a.Status)).
		Bool("is_live", auction.IsLive(a, service.now())).
		Msg("Auction retrieved successfully")

	return a, nil
}

// CancelAuction moves a listing that has not closed to CANCELED on behalf of
// its seller
func (service *AuctionService) CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*auction.Auction, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.SellerID != sellerID {
		service.logger.Warn().
			Str("auction_id", auctionID.String()).
			Str("user_id", sellerID.String()).
			Msg("Non-owner attempted to cancel auction")
		return nil, shared.ErrForbidden
	}
	if a.IsClosed() {
		if a.Status == auction.StatusEnded {
			return nil, shared.ErrAuctionAlreadyEnded
		}
		return nil, shared.ErrAuctionNotCancelable
	}

	now := service.now()
	changed, err := service.auctionRepo.UpdateStatus(ctx, auctionID, a.Status, auction.StatusCanceled, now)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to cancel auction")
		return nil, err
	}
	if !changed {
		return nil, shared.ErrAuctionStateChanged
	}

	a.Status = auction.StatusCanceled
	a.UpdatedAt = now

	service.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction canceled")
	service.effects.publish(ctx, auctionID, outbound.EventTypeAuctionCanceled, now, map[string]interface{}{
		"seller_id": sellerID,
	})
	service.effects.notify(ctx, "auction.canceled", auctionID.String(), nil)

	return a, nil
}

// EndAuctionIfDue closes a LIVE auction whose effective end has passed. When a
// late bid pushed the end forward, the auction is rescheduled instead and the
// result carries Rescheduled with the next check time.
func (service *AuctionService) EndAuctionIfDue(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionEndResult, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusLive {
		service.logger.Debug().
			Str("auction_id", auctionID.String()).
			Str("auction_status", string(a.Status)).
			Msg("Auction not live, nothing to end")
		return nil, shared.ErrAuctionAlreadyEnded
	}

	now := service.now()
	if !auction.HasEnded(a, now) {
		result := &shared.AuctionEndResult{
			AuctionID:   auctionID,
			Status:      string(a.Status),
			Rescheduled: true,
			NextCheckAt: auction.EffectiveEnd(a),
		}
		if result.NextCheckAt != nil && service.schedule != nil {
			if err := service.schedule.ScheduleAuction(ctx, auctionID, *result.NextCheckAt); err != nil {
				service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to reschedule auction")
			}
		}
		return result, nil
	}

	ended, err := service.auctionRepo.UpdateStatus(ctx, auctionID, auction.StatusLive, auction.StatusEnded, now)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to end auction")
		return nil, err
	}
	if !ended {
		return nil, shared.ErrAuctionAlreadyEnded
	}

	result := &shared.AuctionEndResult{
		AuctionID: auctionID,
		Status:    string(auction.StatusEnded),
	}

	highestBid, err := service.bidRepo.GetHighestBid(ctx, auctionID)
	switch {
	case err == nil:
		result.WinnerID = &highestBid.BidderID
		result.FinalPrice = &highestBid.Amount
		service.logger.Info().
			Str("auction_id", auctionID.String()).
			Str("winner_id", highestBid.BidderID.String()).
			Int64("final_price", highestBid.Amount).
			Msg("Auction ended with winner")
	case errors.Is(err, shared.ErrNoBidsFound):
		service.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction ended with no bids")
	default:
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to get highest bid")
	}

	data := map[string]interface{}{}
	if result.WinnerID != nil {
		data["winner_id"] = *result.WinnerID
		data["final_price"] = *result.FinalPrice
	}
	service.effects.publish(ctx, auctionID, outbound.EventTypeAuctionEnded, now, data)
	service.effects.notify(ctx, "auction.ended", auctionID.String(), data)

	return result, nil
}

// SweepExpired opens SCHEDULED auctions whose start has passed and ends LIVE
// auctions whose effective end has passed. It is the database-driven backstop
// for the Redis schedule and is safe to run from several instances.
func (service *AuctionService) SweepExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	now := service.now()
	due, err := service.auctionRepo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	transitioned := 0
	for _, a := range due {
		switch a.Status {
		case auction.StatusScheduled:
			opened, err := service.auctionRepo.UpdateStatus(ctx, a.ID, auction.StatusScheduled, auction.StatusLive, now)
			if err != nil {
				service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to open auction")
				continue
			}
			if !opened {
				continue
			}
			transitioned++
			service.logger.Info().Str("auction_id", a.ID.String()).Msg("Auction is live")
			if end := auction.EffectiveEnd(a); end != nil && service.schedule != nil {
				if err := service.schedule.ScheduleAuction(ctx, a.ID, *end); err != nil {
					service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to schedule auction close")
				}
			}
		case auction.StatusLive:
			result, err := service.EndAuctionIfDue(ctx, a.ID)
			if err != nil {
				if !errors.Is(err, shared.ErrAuctionAlreadyEnded) {
					service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to end auction")
				}
				continue
			}
			if !result.Rescheduled {
				transitioned++
			}
		}
	}
	return transitioned, nil
}
