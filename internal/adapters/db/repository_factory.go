package db

import (
	"live-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetBidRepository returns the bid repository
func (f *RepositoryFactory) GetBidRepository() outbound.BidRepository {
	return NewBidRepository(f.conn)
}

// GetOrderRepository returns the order repository
func (f *RepositoryFactory) GetOrderRepository() outbound.OrderRepository {
	return NewOrderRepository(f.conn)
}

// GetPayoutRepository returns the payout repository
func (f *RepositoryFactory) GetPayoutRepository() outbound.PayoutRepository {
	return NewPayoutRepository(f.conn)
}

// GetUserRepository returns the user repository
func (f *RepositoryFactory) GetUserRepository() outbound.UserRepository {
	return NewUserRepository(f.conn)
}

var _ outbound.RepositoryFactory = (*RepositoryFactory)(nil)
