package app

import (
	"context"
	"errors"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/bid"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/inbound"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid use cases
type BidService struct {
	bidRepo     outbound.BidRepository
	auctionRepo outbound.AuctionRepository
	userRepo    outbound.UserRepository
	schedule    outbound.ExpirationSchedule
	effects     sideEffects
	now         func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	BidRepo     outbound.BidRepository
	AuctionRepo outbound.AuctionRepository
	UserRepo    outbound.UserRepository
	Schedule    outbound.ExpirationSchedule
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	logger := params.Logger.With().Str("component", "bid_service").Logger()
	return &BidService{
		bidRepo:     params.BidRepo,
		auctionRepo: params.AuctionRepo,
		userRepo:    params.UserRepo,
		schedule:    params.Schedule,
		effects:     sideEffects{broadcaster: params.Broadcaster, notifier: params.Notifier, logger: logger},
		now:         clockOrDefault(params.Now),
		logger:      logger,
	}
}

// PlaceBid validates a bid against the auction as read, then applies it with a
// conditional write on the current bid. A concurrent writer that got there
// first turns this call into shared.ErrBidConflict; the caller must re-read
// and resubmit.
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*inbound.BidResult, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Int64("amount", req.Amount).
		Msg("Attempting to place bid")

	if req.Amount <= 0 {
		service.logger.Warn().Int64("amount", req.Amount).Msg("Invalid bid amount (must be > 0)")
		return nil, shared.ErrBidAmountInvalid
	}

	current, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return nil, shared.ErrAuctionNotFound
		}
		service.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to load auction")
		return nil, err
	}

	now := service.now()
	if err := service.validate(current, req, now); err != nil {
		service.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("bidder_id", req.BidderID.String()).
			Int64("amount", req.Amount).
			Int64("current_bid", current.CurrentBid).
			Msg("Bid rejected")
		return nil, err
	}

	if _, err := service.userRepo.GetByID(ctx, req.BidderID); err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return nil, shared.ErrBidderNotFound
		}
		return nil, err
	}

	nextEnd := auction.ComputeExtendedEndTime(auction.EffectiveEnd(current), current.AntiSnipeWindow(), now)
	newBid := bid.New(req.AuctionID, req.BidderID, req.Amount, current.AntiSnipeSeconds, now)

	updated, err := service.auctionRepo.ApplyBid(ctx, newBid, current.CurrentBid, nextEnd)
	if err != nil {
		if errors.Is(err, shared.ErrBidConflict) {
			service.logger.Info().
				Str("auction_id", req.AuctionID.String()).
				Int64("expected_current_bid", current.CurrentBid).
				Msg("Bid lost the race for the current bid")
			return nil, shared.ErrBidConflict
		}
		service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to apply bid")
		return nil, err
	}

	service.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", updated.ID.String()).
		Int64("current_bid", updated.CurrentBid).
		Time("extended_time", nextEnd).
		Msg("Bid accepted")

	service.afterBid(ctx, updated, newBid, nextEnd)

	return &inbound.BidResult{Auction: updated, Bid: newBid}, nil
}

func (service *BidService) validate(a *auction.Auction, req inbound.PlaceBidRequest, now time.Time) error {
	switch {
	case !a.AcceptsBids():
		return shared.ErrInvalidListing
	case a.Status != auction.StatusLive:
		return shared.ErrAuctionNotLive
	case auction.HasEnded(a, now):
		return shared.ErrAuctionEnded
	case req.Amount < a.MinimumNextBid():
		return shared.ErrBidTooLow
	case req.BidderID == a.SellerID:
		return shared.ErrSelfBid
	}
	return nil
}

func (service *BidService) afterBid(ctx context.Context, a *auction.Auction, b *bid.Bid, nextEnd time.Time) {
	if service.schedule != nil {
		if err := service.schedule.ScheduleAuction(ctx, a.ID, nextEnd); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to reschedule auction close")
		}
	}

	service.effects.publish(ctx, a.ID, outbound.EventTypeBidPlaced, b.CreatedAt, map[string]interface{}{
		"bid_id":      b.ID,
		"bidder_id":   b.BidderID,
		"amount":      b.Amount,
		"current_bid": a.CurrentBid,
	})
	service.effects.publish(ctx, a.ID, outbound.EventTypeAuctionExtended, b.CreatedAt, map[string]interface{}{
		"extended_time": nextEnd.Unix(),
		"extends_by":    b.ExtendsTimerBy,
	})
	service.effects.notify(ctx, "bid.placed", a.ID.String(), map[string]interface{}{
		"bid_id":    b.ID.String(),
		"bidder_id": b.BidderID.String(),
		"amount":    b.Amount,
	})
}

// GetBids retrieves bids for an auction
func (service *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := service.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return service.bidRepo.GetByAuctionID(ctx, auctionID)
}

// GetHighestBid retrieves the highest bid for an auction
func (service *BidService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	return service.bidRepo.GetHighestBid(ctx, auctionID)
}
