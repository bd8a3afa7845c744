package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// UserRepository implements the user repository interface
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new user repository
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	query := `
		SELECT id, name
		FROM users
		WHERE id = $1
	`

	var user shared.User
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetSeller retrieves the payout settings of a seller
func (r *UserRepository) GetSeller(ctx context.Context, id uuid.UUID) (*shared.Seller, error) {
	query := `
		SELECT id, payouts_enabled, transfer_destination
		FROM users
		WHERE id = $1
	`

	var (
		seller      shared.Seller
		destination sql.NullString
	)
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&seller.ID,
		&seller.PayoutsEnabled,
		&destination,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	if destination.Valid {
		seller.TransferDestination = &destination.String
	}

	return &seller, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *shared.User) error {
	query := `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		user.ID,
		user.Name,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}
