package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const payoutColumns = `id, order_id, seller_id, amount, currency, status, scheduled_at,
	provider_transfer_id, paid_at, failure_reason, created_at, updated_at`

// PayoutRepository implements payout persistence
type PayoutRepository struct {
	conn *Connection
}

// NewPayoutRepository creates a new payout repository
func NewPayoutRepository(conn *Connection) *PayoutRepository {
	return &PayoutRepository{conn: conn}
}

func scanPayout(row rowScanner) (*payout.Payout, error) {
	var (
		p          payout.Payout
		transferID sql.NullString
		paidAt     sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.SellerID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.ScheduledAt,
		&transferID,
		&paidAt,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if transferID.Valid {
		p.ProviderTransferID = &transferID.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}

// GetByOrderID retrieves the payout of an order
func (r *PayoutRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE order_id = $1`

	p, err := scanPayout(r.conn.GetDB().QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// MarkPaid writes the transfer id once. The WHERE clause is the mutual
// exclusion between concurrent disbursements of the same payout.
func (r *PayoutRepository) MarkPaid(ctx context.Context, id uuid.UUID, transferID string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payouts
		SET status = 'PAID', provider_transfer_id = $2, paid_at = $3, failure_reason = '', updated_at = $3
		WHERE id = $1 AND status = 'PENDING' AND provider_transfer_id IS NULL
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, transferID, paidAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			// the transfer id is already recorded on this payout's row
			return false, nil
		}
		return false, fmt.Errorf("failed to mark payout paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RecordFailure stores the last failure reason on a pending payout. A payout
// settled by a concurrent transfer keeps its state.
func (r *PayoutRepository) RecordFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE payouts
		SET failure_reason = $2, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, reason, at)
	if err != nil {
		return false, fmt.Errorf("failed to record payout failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Cancel fails the order's payout before any transfer was made
func (r *PayoutRepository) Cancel(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE payouts
		SET status = 'FAILED', failure_reason = $2, updated_at = $3
		WHERE order_id = $1 AND status = 'PENDING' AND provider_transfer_id IS NULL
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, orderID, reason, at)
	if err != nil {
		return false, fmt.Errorf("failed to cancel payout: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListDue returns pending payouts whose hold has elapsed, oldest first
func (r *PayoutRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*payout.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE status = 'PENDING' AND provider_transfer_id IS NULL AND scheduled_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*payout.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payouts: %w", err)
	}

	return payouts, nil
}
