package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-auction-service/internal/adapters/memory"
	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/idempotency"
	"live-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: baseTime} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeProvider struct {
	mu           sync.Mutex
	intentCalls  []outbound.IntentRequest
	transferCall []outbound.TransferRequest
	intentStatus string
	intentErr    error
	transferErr  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, req outbound.IntentRequest) (*outbound.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intentCalls = append(p.intentCalls, req)
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	status := p.intentStatus
	if status == "" {
		status = "requires_payment_method"
	}
	return &outbound.Intent{ID: "pi_fake_" + req.IdempotencyKey, Status: status, ClientSecret: "secret_" + req.IdempotencyKey}, nil
}

func (p *fakeProvider) CreateTransfer(_ context.Context, req outbound.TransferRequest) (*outbound.Transfer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferCall = append(p.transferCall, req)
	if p.transferErr != nil {
		return nil, p.transferErr
	}
	return &outbound.Transfer{ID: "tr_fake_" + req.IdempotencyKey}, nil
}

func (p *fakeProvider) intents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.intentCalls)
}

func (p *fakeProvider) transfers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transferCall)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *recordingBroadcaster) Subscribe(context.Context, uuid.UUID, string, chan outbound.Event) error {
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(context.Context, uuid.UUID, string) error { return nil }

func (b *recordingBroadcaster) RemoveClient(context.Context, string) error { return nil }

func (b *recordingBroadcaster) Publish(_ context.Context, _ uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) types() []outbound.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []outbound.EventType
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	types []string
	fail  bool
}

func (n *recordingNotifier) Notify(_ context.Context, note outbound.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, note.Type)
	if n.fail {
		return errors.New("notifier down")
	}
	return nil
}

func (n *recordingNotifier) has(t string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, v := range n.types {
		if v == t {
			return true
		}
	}
	return false
}

type recordingSchedule struct {
	mu    sync.Mutex
	times map[uuid.UUID]time.Time
}

func (s *recordingSchedule) ScheduleAuction(_ context.Context, auctionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.times == nil {
		s.times = make(map[uuid.UUID]time.Time)
	}
	s.times[auctionID] = at
	return nil
}

func (s *recordingSchedule) get(auctionID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.times[auctionID]
	return at, ok
}

type harness struct {
	store       *memory.Store
	clock       *fakeClock
	provider    *fakeProvider
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	schedule    *recordingSchedule
	caller      *idempotency.Caller
}

func newHarness() *harness {
	store := memory.NewStore()
	return &harness{
		store:       store,
		clock:       newFakeClock(),
		provider:    &fakeProvider{},
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
		schedule:    &recordingSchedule{},
		caller: idempotency.NewCaller(idempotency.CallerParams{
			Store:  store.IdempotencyStore(),
			Logger: zerolog.Nop(),
		}),
	}
}

func (h *harness) bidService() *BidService {
	return NewBidService(BidServiceParams{
		BidRepo:     h.store.GetBidRepository(),
		AuctionRepo: h.store.GetAuctionRepository(),
		UserRepo:    h.store.GetUserRepository(),
		Schedule:    h.schedule,
		Broadcaster: h.broadcaster,
		Notifier:    h.notifier,
		Now:         h.clock.Now,
		Logger:      zerolog.Nop(),
	})
}

func (h *harness) auctionService() *AuctionService {
	return NewAuctionService(AuctionServiceParams{
		AuctionRepo: h.store.GetAuctionRepository(),
		BidRepo:     h.store.GetBidRepository(),
		Schedule:    h.schedule,
		Broadcaster: h.broadcaster,
		Notifier:    h.notifier,
		Now:         h.clock.Now,
		Logger:      zerolog.Nop(),
	})
}

func (h *harness) purchaseService() *PurchaseService {
	return NewPurchaseService(PurchaseServiceParams{
		AuctionRepo: h.store.GetAuctionRepository(),
		OrderRepo:   h.store.GetOrderRepository(),
		Provider:    h.provider,
		Caller:      h.caller,
		Broadcaster: h.broadcaster,
		Notifier:    h.notifier,
		Now:         h.clock.Now,
		Logger:      zerolog.Nop(),
	})
}

func (h *harness) settlementService() *SettlementService {
	return NewSettlementService(SettlementServiceParams{
		OrderRepo:  h.store.GetOrderRepository(),
		PayoutRepo: h.store.GetPayoutRepository(),
		Notifier:   h.notifier,
		Now:        h.clock.Now,
		Logger:     zerolog.Nop(),
	})
}

func (h *harness) payoutService(holdDays int) *PayoutService {
	return NewPayoutService(PayoutServiceParams{
		OrderRepo:  h.store.GetOrderRepository(),
		PayoutRepo: h.store.GetPayoutRepository(),
		UserRepo:   h.store.GetUserRepository(),
		Provider:   h.provider,
		Caller:     h.caller,
		HoldDays:   holdDays,
		Notifier:   h.notifier,
		Now:        h.clock.Now,
		Logger:     zerolog.Nop(),
	})
}

func (h *harness) user(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.store.GetUserRepository().Create(context.Background(), &shared.User{ID: id, Name: "user-" + id.String()[:8]}))
	return id
}

// seller creates a seller; an empty destination leaves transfers disabled
func (h *harness) seller(t *testing.T, destination string) uuid.UUID {
	t.Helper()
	id := h.user(t)
	s := shared.Seller{ID: id}
	if destination != "" {
		s.PayoutsEnabled = true
		s.TransferDestination = &destination
	}
	h.store.PutSeller(s)
	return id
}

type auctionOption func(*auction.Auction)

func withBuyNow(price int64) auctionOption {
	return func(a *auction.Auction) {
		a.ListingType = auction.ListingBoth
		a.BuyNowPrice = &price
	}
}

func withListingType(lt auction.ListingType) auctionOption {
	return func(a *auction.Auction) { a.ListingType = lt }
}

func withStatus(s auction.Status) auctionOption {
	return func(a *auction.Auction) { a.Status = s }
}

func withEnd(end time.Time) auctionOption {
	return func(a *auction.Auction) { a.EndTime = &end }
}

func (h *harness) auction(t *testing.T, sellerID uuid.UUID, opts ...auctionOption) *auction.Auction {
	t.Helper()
	end := h.clock.Now().Add(10 * time.Minute)
	a := &auction.Auction{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Status:           auction.StatusLive,
		ListingType:      auction.ListingAuction,
		CurrentBid:       10000,
		MinBidIncrement:  2000,
		StartTime:        h.clock.Now().Add(-time.Hour),
		EndTime:          &end,
		AntiSnipeSeconds: 12,
		Currency:         "usd",
		CreatedAt:        h.clock.Now().Add(-2 * time.Hour),
		UpdatedAt:        h.clock.Now().Add(-2 * time.Hour),
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, h.store.GetAuctionRepository().Create(context.Background(), a))
	return a
}
