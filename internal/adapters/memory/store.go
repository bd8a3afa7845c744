// Package memory is a process-local store with the same conditional-write
// semantics as the Postgres repositories. Every call runs under one mutex, so
// each call is serializable like a single SQL statement or transaction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/bid"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// Store holds every table in maps
type Store struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]auction.Auction
	bids     map[uuid.UUID][]bid.Bid
	users    map[uuid.UUID]shared.User
	sellers  map[uuid.UUID]shared.Seller
	orders   map[uuid.UUID]order.Order
	payments map[uuid.UUID]order.Payment // by order id
	payouts  map[uuid.UUID]payout.Payout // by order id
	idem     map[string]idemEntry
}

type idemEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]auction.Auction),
		bids:     make(map[uuid.UUID][]bid.Bid),
		users:    make(map[uuid.UUID]shared.User),
		sellers:  make(map[uuid.UUID]shared.Seller),
		orders:   make(map[uuid.UUID]order.Order),
		payments: make(map[uuid.UUID]order.Payment),
		payouts:  make(map[uuid.UUID]payout.Payout),
		idem:     make(map[string]idemEntry),
	}
}

func (s *Store) GetAuctionRepository() outbound.AuctionRepository { return &auctionRepository{s} }
func (s *Store) GetBidRepository() outbound.BidRepository         { return &bidRepository{s} }
func (s *Store) GetOrderRepository() outbound.OrderRepository     { return &orderRepository{s} }
func (s *Store) GetPayoutRepository() outbound.PayoutRepository   { return &payoutRepository{s} }
func (s *Store) GetUserRepository() outbound.UserRepository       { return &userRepository{s} }

// PutSeller stores or replaces a seller's payout settings
func (s *Store) PutSeller(seller shared.Seller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seller.TransferDestination != nil {
		dest := *seller.TransferDestination
		seller.TransferDestination = &dest
	}
	s.sellers[seller.ID] = seller
}

// Payouts returns every stored payout, used to audit exactly-once disbursement
func (s *Store) Payouts() []*payout.Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*payout.Payout, 0, len(s.payouts))
	for _, p := range s.payouts {
		out = append(out, clonePayout(p))
	}
	return out
}

type auctionRepository struct{ s *Store }

func (r *auctionRepository) Create(_ context.Context, a *auction.Auction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.auctions[a.ID] = *cloneAuction(*a)
	return nil
}

func (r *auctionRepository) GetByID(_ context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

func (r *auctionRepository) ApplyBid(_ context.Context, b *bid.Bid, expectedCurrentBid int64, extendedTime time.Time) (*auction.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.auctions[b.AuctionID]
	if !ok || a.CurrentBid != expectedCurrentBid || a.Status != auction.StatusLive {
		return nil, shared.ErrBidConflict
	}
	ext := extendedTime
	a.CurrentBid = b.Amount
	a.ExtendedTime = &ext
	a.UpdatedAt = b.CreatedAt
	r.s.auctions[a.ID] = a
	r.s.bids[a.ID] = append(r.s.bids[a.ID], *b)
	return cloneAuction(a), nil
}

func (r *auctionRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to auction.Status, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.auctions[id]
	if !ok {
		return false, shared.ErrAuctionNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = at
	r.s.auctions[id] = a
	return true, nil
}

func (r *auctionRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*auction.Auction
	for _, a := range r.s.auctions {
		switch {
		case a.Status == auction.StatusLive && auction.HasEnded(&a, now):
		case a.Status == auction.StatusScheduled && !a.StartTime.After(now):
		default:
			continue
		}
		due = append(due, cloneAuction(a))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type bidRepository struct{ s *Store }

func (r *bidRepository) GetByAuctionID(_ context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*bid.Bid, 0, len(r.s.bids[auctionID]))
	for _, b := range r.s.bids[auctionID] {
		b := b
		out = append(out, &b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *bidRepository) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	bids, _ := r.GetByAuctionID(ctx, auctionID)
	if len(bids) == 0 {
		return nil, shared.ErrNoBidsFound
	}
	return bids[0], nil
}

type orderRepository struct{ s *Store }

func (r *orderRepository) CreateWithPayment(_ context.Context, o *order.Order, p *order.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orders {
		if existing.AuctionID == o.AuctionID && existing.IsActive() {
			return shared.ErrAlreadySold
		}
	}
	r.s.orders[o.ID] = *o
	r.s.payments[o.ID] = *clonePayment(*p)
	return nil
}

func (r *orderRepository) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, shared.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *orderRepository) ActiveForAuction(_ context.Context, auctionID uuid.UUID) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.AuctionID == auctionID && o.IsActive() {
			return cloneOrder(o), nil
		}
	}
	return nil, shared.ErrOrderNotFound
}

func (r *orderRepository) UpdateStatus(_ context.Context, id uuid.UUID, to order.Status, at time.Time, from ...order.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return false, shared.ErrOrderNotFound
	}
	if len(from) > 0 && !containsStatus(from, o.Status) {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	r.s.orders[id] = o
	return true, nil
}

func (r *orderRepository) Confirm(_ context.Context, orderID uuid.UUID, at time.Time, candidate *payout.Payout) (*payout.Payout, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, false, shared.ErrOrderNotFound
	}
	confirmed := false
	if o.CanConfirm() {
		confirmedAt := at
		o.Status = order.StatusConfirmed
		o.ConfirmedAt = &confirmedAt
		o.UpdatedAt = at
		r.s.orders[orderID] = o
		confirmed = true
	}
	existing, ok := r.s.payouts[orderID]
	if !ok {
		if !confirmed {
			return nil, false, nil
		}
		existing = *clonePayout(*candidate)
		r.s.payouts[orderID] = existing
	}
	return clonePayout(existing), confirmed, nil
}

func (r *orderRepository) GetPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*order.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r *orderRepository) GetPaymentByIntent(_ context.Context, intentID string) (*order.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ProviderPaymentIntent != nil && *p.ProviderPaymentIntent == intentID {
			return clonePayment(p), nil
		}
	}
	return nil, shared.ErrPaymentNotFound
}

func (r *orderRepository) UpdatePayment(_ context.Context, p *order.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.OrderID]; !ok {
		return shared.ErrPaymentNotFound
	}
	r.s.payments[p.OrderID] = *clonePayment(*p)
	return nil
}

type payoutRepository struct{ s *Store }

func (r *payoutRepository) GetByOrderID(_ context.Context, orderID uuid.UUID) (*payout.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payouts[orderID]
	if !ok {
		return nil, shared.ErrPayoutNotFound
	}
	return clonePayout(p), nil
}

func (r *payoutRepository) MarkPaid(_ context.Context, id uuid.UUID, transferID string, paidAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for orderID, p := range r.s.payouts {
		if p.ID != id {
			continue
		}
		if p.Status != payout.StatusPending || p.HasTransfer() {
			return false, nil
		}
		tid, at := transferID, paidAt
		p.ProviderTransferID = &tid
		p.PaidAt = &at
		p.Status = payout.StatusPaid
		p.FailureReason = ""
		p.UpdatedAt = paidAt
		r.s.payouts[orderID] = p
		return true, nil
	}
	return false, shared.ErrPayoutNotFound
}

func (r *payoutRepository) RecordFailure(_ context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for orderID, p := range r.s.payouts {
		if p.ID != id {
			continue
		}
		if p.Status != payout.StatusPending {
			return false, nil
		}
		p.FailureReason = reason
		p.UpdatedAt = at
		r.s.payouts[orderID] = p
		return true, nil
	}
	return false, nil
}

func (r *payoutRepository) Cancel(_ context.Context, orderID uuid.UUID, reason string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payouts[orderID]
	if !ok || p.Status != payout.StatusPending || p.HasTransfer() {
		return false, nil
	}
	p.Status = payout.StatusFailed
	p.FailureReason = reason
	p.UpdatedAt = at
	r.s.payouts[orderID] = p
	return true, nil
}

func (r *payoutRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*payout.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*payout.Payout
	for _, p := range r.s.payouts {
		if p.Status == payout.StatusPending && !p.HasTransfer() && p.IsDue(now) {
			due = append(due, clonePayout(p))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type userRepository struct{ s *Store }

func (r *userRepository) GetByID(_ context.Context, id uuid.UUID) (*shared.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepository) GetSeller(_ context.Context, id uuid.UUID) (*shared.Seller, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seller, ok := r.s.sellers[id]
	if !ok {
		if _, isUser := r.s.users[id]; !isUser {
			return nil, shared.ErrSellerNotFound
		}
		seller = shared.Seller{ID: id}
	}
	if seller.TransferDestination != nil {
		dest := *seller.TransferDestination
		seller.TransferDestination = &dest
	}
	return &seller, nil
}

func (r *userRepository) Create(_ context.Context, u *shared.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[u.ID] = *u
	return nil
}

func containsStatus(list []order.Status, s order.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ outbound.RepositoryFactory = (*Store)(nil)
