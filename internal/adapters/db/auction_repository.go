package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/bid"
	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, seller_id, status, listing_type, current_bid, min_bid_increment, buy_now_price,
	start_time, end_time, extended_time, anti_snipe_seconds, currency, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a            auction.Auction
		buyNowPrice  sql.NullInt64
		endTime      sql.NullTime
		extendedTime sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Status,
		&a.ListingType,
		&a.CurrentBid,
		&a.MinBidIncrement,
		&buyNowPrice,
		&a.StartTime,
		&endTime,
		&extendedTime,
		&a.AntiSnipeSeconds,
		&a.Currency,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if buyNowPrice.Valid {
		a.BuyNowPrice = &buyNowPrice.Int64
	}
	if endTime.Valid {
		a.EndTime = &endTime.Time
	}
	if extendedTime.Valid {
		a.ExtendedTime = &extendedTime.Time
	}
	return &a, nil
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.SellerID,
		a.Status,
		a.ListingType,
		a.CurrentBid,
		a.MinBidIncrement,
		a.BuyNowPrice,
		a.StartTime,
		a.EndTime,
		a.ExtendedTime,
		a.AntiSnipeSeconds,
		a.Currency,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

/*
ApplyBid commits a bid with optimistic concurrency control.
 1. Update the auction only if current_bid still holds the value the caller validated against
 2. Zero affected rows means another bid committed first: ErrBidConflict
 3. Append the bid row in the same transaction
*/
func (r *AuctionRepository) ApplyBid(ctx context.Context, b *bid.Bid, expectedCurrentBid int64, extendedTime time.Time) (*auction.Auction, error) {
	var updated *auction.Auction

	err := r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		updateQuery := `
			UPDATE auctions
			SET current_bid = $2, extended_time = $3, updated_at = $4
			WHERE id = $1 AND current_bid = $5 AND status = 'LIVE'
			RETURNING ` + auctionColumns

		a, err := scanAuction(tx.QueryRowContext(ctx, updateQuery,
			b.AuctionID,
			b.Amount,
			extendedTime,
			b.CreatedAt,
			expectedCurrentBid,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrBidConflict
			}
			return fmt.Errorf("failed to update current bid: %w", err)
		}

		bidQuery := `
			INSERT INTO bids (id, auction_id, bidder_id, amount, extends_timer_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, bidQuery,
			b.ID,
			b.AuctionID,
			b.BidderID,
			b.Amount,
			b.ExtendsTimerBy,
			b.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// UpdateStatus moves an auction between statuses if it is still in from
func (r *AuctionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to auction.Status, at time.Time) (bool, error) {
	query := `
		UPDATE auctions
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("failed to update auction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListDue returns auctions that need a lifecycle transition at now
func (r *AuctionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE (status = 'LIVE' AND COALESCE(extended_time, end_time) <= $1)
		   OR (status = 'SCHEDULED' AND start_time <= $1)
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}
