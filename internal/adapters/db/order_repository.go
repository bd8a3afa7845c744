package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	orderColumns = `id, auction_id, buyer_id, seller_id, amount, platform_fee, processing_fee,
	currency, status, created_at, updated_at, confirmed_at`
	paymentColumns = `id, order_id, provider, amount, currency, provider_payment_intent,
	status, refunded_at, created_at, updated_at`
)

// OrderRepository implements order and payment persistence
type OrderRepository struct {
	conn *Connection
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(conn *Connection) *OrderRepository {
	return &OrderRepository{conn: conn}
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o           order.Order
		confirmedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.AuctionID,
		&o.BuyerID,
		&o.SellerID,
		&o.Amount,
		&o.PlatformFee,
		&o.ProcessingFee,
		&o.Currency,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
		&confirmedAt,
	)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		o.ConfirmedAt = &confirmedAt.Time
	}
	return &o, nil
}

func scanPayment(row rowScanner) (*order.Payment, error) {
	var (
		p          order.Payment
		intent     sql.NullString
		refundedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Provider,
		&p.Amount,
		&p.Currency,
		&intent,
		&p.Status,
		&refundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if intent.Valid {
		p.ProviderPaymentIntent = &intent.String
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	return &p, nil
}

// CreateWithPayment inserts the order and its payment in one transaction. The
// partial unique index on active orders turns a lost race into ErrAlreadySold.
func (r *OrderRepository) CreateWithPayment(ctx context.Context, o *order.Order, p *order.Payment) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		orderQuery := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err := tx.ExecContext(ctx, orderQuery,
			o.ID,
			o.AuctionID,
			o.BuyerID,
			o.SellerID,
			o.Amount,
			o.PlatformFee,
			o.ProcessingFee,
			o.Currency,
			o.Status,
			o.CreatedAt,
			o.UpdatedAt,
			o.ConfirmedAt,
		)
		if err != nil {
			if isUniqueViolation(err, activeOrderIndex) {
				return shared.ErrAlreadySold
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		paymentQuery := `
			INSERT INTO payments (` + paymentColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.ExecContext(ctx, paymentQuery,
			p.ID,
			p.OrderID,
			p.Provider,
			p.Amount,
			p.Currency,
			p.ProviderPaymentIntent,
			p.Status,
			p.RefundedAt,
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ActiveForAuction returns the order holding the listing, if any
func (r *OrderRepository) ActiveForAuction(ctx context.Context, auctionID uuid.UUID) (*order.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE auction_id = $1 AND NOT (status = ANY($2))
		LIMIT 1
	`

	o, err := scanOrder(r.conn.GetDB().QueryRowContext(ctx, query, auctionID, pq.Array(inactiveStatuses())))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get active order: %w", err)
	}
	return o, nil
}

// UpdateStatus sets the order status, guarded by the from statuses when given
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to order.Status, at time.Time, from ...order.Status) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	args := []interface{}{id, to, at}
	if len(from) > 0 {
		query += ` AND status = ANY($4)`
		args = append(args, pq.Array(statusStrings(from)))
	}

	result, err := r.conn.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 && len(from) == 0 {
		return false, shared.ErrOrderNotFound
	}

	return rowsAffected > 0, nil
}

// Confirm moves the order to CONFIRMED and inserts its payout in one
// transaction. ON CONFLICT keeps the first payout row for an order.
func (r *OrderRepository) Confirm(ctx context.Context, orderID uuid.UUID, at time.Time, candidate *payout.Payout) (*payout.Payout, bool, error) {
	var (
		stored    *payout.Payout
		confirmed bool
	)

	err := r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		updateQuery := `
			UPDATE orders
			SET status = 'CONFIRMED', confirmed_at = $2, updated_at = $2
			WHERE id = $1 AND status IN ('PAID', 'DELIVERED')
		`
		result, err := tx.ExecContext(ctx, updateQuery, orderID, at)
		if err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		confirmed = rowsAffected > 0

		if confirmed {
			insertQuery := `
				INSERT INTO payouts (` + payoutColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (order_id) DO NOTHING
			`
			if _, err := tx.ExecContext(ctx, insertQuery,
				candidate.ID,
				candidate.OrderID,
				candidate.SellerID,
				candidate.Amount,
				candidate.Currency,
				candidate.Status,
				candidate.ScheduledAt,
				candidate.ProviderTransferID,
				candidate.PaidAt,
				candidate.FailureReason,
				candidate.CreatedAt,
				candidate.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to create payout: %w", err)
			}
		}

		selectQuery := `SELECT ` + payoutColumns + ` FROM payouts WHERE order_id = $1`
		p, err := scanPayout(tx.QueryRowContext(ctx, selectQuery, orderID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to read payout: %w", err)
		}
		stored = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return stored, confirmed, nil
}

// GetPaymentByOrderID retrieves the payment of an order
func (r *OrderRepository) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*order.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	p, err := scanPayment(r.conn.GetDB().QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentByIntent retrieves a payment by provider intent id
func (r *OrderRepository) GetPaymentByIntent(ctx context.Context, intentID string) (*order.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_intent = $1`

	p, err := scanPayment(r.conn.GetDB().QueryRowContext(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by intent: %w", err)
	}
	return p, nil
}

// UpdatePayment writes the mutable payment fields
func (r *OrderRepository) UpdatePayment(ctx context.Context, p *order.Payment) error {
	query := `
		UPDATE payments
		SET provider_payment_intent = $2, status = $3, refunded_at = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		p.ID,
		p.ProviderPaymentIntent,
		p.Status,
		p.RefundedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrPaymentNotFound
	}

	return nil
}

func inactiveStatuses() []string {
	return statusStrings(order.InactiveStatuses)
}

func statusStrings(statuses []order.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
