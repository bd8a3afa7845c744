package memory

import (
	"context"
	"testing"
	"time"

	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/bid"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
	"live-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func liveAuction(store *Store) *auction.Auction {
	end := now.Add(time.Minute)
	a := &auction.Auction{
		ID:               uuid.New(),
		SellerID:         uuid.New(),
		Status:           auction.StatusLive,
		ListingType:      auction.ListingAuction,
		CurrentBid:       100,
		MinBidIncrement:  10,
		StartTime:        now.Add(-time.Minute),
		EndTime:          &end,
		AntiSnipeSeconds: 10,
		Currency:         "usd",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_ = store.GetAuctionRepository().Create(context.Background(), a)
	return a
}

func TestApplyBidRequiresExpectedCurrentBid(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetAuctionRepository()
	a := liveAuction(store)

	first := bid.New(a.ID, uuid.New(), 110, 0, now)
	updated, err := repo.ApplyBid(ctx, first, 100, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(110), updated.CurrentBid)

	// a second writer that read the old price loses
	stale := bid.New(a.ID, uuid.New(), 120, 0, now)
	_, err = repo.ApplyBid(ctx, stale, 100, now.Add(time.Minute))
	assert.ErrorIs(t, err, shared.ErrBidConflict)

	bids, err := store.GetBidRepository().GetByAuctionID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, int64(110), bids[0].Amount)
}

func TestApplyBidRejectsClosedAuction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetAuctionRepository()
	a := liveAuction(store)

	ok, err := repo.UpdateStatus(ctx, a.ID, auction.StatusLive, auction.StatusEnded, now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.ApplyBid(ctx, bid.New(a.ID, uuid.New(), 110, 0, now), 100, now)
	assert.ErrorIs(t, err, shared.ErrBidConflict)
}

func TestUpdateStatusOnlyFromExpected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetAuctionRepository()
	a := liveAuction(store)

	ok, err := repo.UpdateStatus(ctx, a.ID, auction.StatusScheduled, auction.StatusLive, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.UpdateStatus(ctx, uuid.New(), auction.StatusLive, auction.StatusEnded, now)
	assert.ErrorIs(t, err, shared.ErrAuctionNotFound)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetAuctionRepository()
	a := liveAuction(store)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	got.CurrentBid = 999
	*got.EndTime = now.Add(time.Hour)

	again, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.CurrentBid)
	assert.Equal(t, now.Add(time.Minute), *again.EndTime)
}

func TestBidsHighestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetAuctionRepository()
	a := liveAuction(store)

	current := a.CurrentBid
	for i, amount := range []int64{110, 130, 150} {
		b := bid.New(a.ID, uuid.New(), amount, 0, now.Add(time.Duration(i)*time.Second))
		_, err := repo.ApplyBid(ctx, b, current, now.Add(time.Minute))
		require.NoError(t, err)
		current = amount
	}

	bids, err := store.GetBidRepository().GetByAuctionID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	assert.Equal(t, []int64{150, 130, 110}, []int64{bids[0].Amount, bids[1].Amount, bids[2].Amount})

	highest, err := store.GetBidRepository().GetHighestBid(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), highest.Amount)

	_, err = store.GetBidRepository().GetHighestBid(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNoBidsFound)
}

func newOrder(auctionID uuid.UUID) (*order.Order, *order.Payment) {
	o := &order.Order{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		Amount:    1000,
		Currency:  "usd",
		Status:    order.StatusRequiresPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p := &order.Payment{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Provider:  "sandbox",
		Amount:    1000,
		Currency:  "usd",
		Status:    order.PaymentRequiresConfirmation,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return o, p
}

func TestOneActiveOrderPerAuction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetOrderRepository()
	auctionID := uuid.New()

	first, firstPayment := newOrder(auctionID)
	require.NoError(t, repo.CreateWithPayment(ctx, first, firstPayment))

	second, secondPayment := newOrder(auctionID)
	assert.ErrorIs(t, repo.CreateWithPayment(ctx, second, secondPayment), shared.ErrAlreadySold)

	// a canceled order releases the listing
	ok, err := repo.UpdateStatus(ctx, first.ID, order.StatusCanceled, now, order.StatusRequiresPayment)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, repo.CreateWithPayment(ctx, second, secondPayment))

	active, err := repo.ActiveForAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestGetPaymentByIntent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetOrderRepository()

	o, p := newOrder(uuid.New())
	require.NoError(t, repo.CreateWithPayment(ctx, o, p))

	intent := "pi_123"
	p.ProviderPaymentIntent = &intent
	require.NoError(t, repo.UpdatePayment(ctx, p))

	got, err := repo.GetPaymentByIntent(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.OrderID)

	_, err = repo.GetPaymentByIntent(ctx, "pi_missing")
	assert.ErrorIs(t, err, shared.ErrPaymentNotFound)
}

func candidatePayout(o *order.Order, scheduledAt time.Time) *payout.Payout {
	return &payout.Payout{
		ID:          uuid.New(),
		OrderID:     o.ID,
		SellerID:    o.SellerID,
		Amount:      900,
		Currency:    o.Currency,
		Status:      payout.StatusPending,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestConfirmCreatesOnePayout(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetOrderRepository()

	o, p := newOrder(uuid.New())
	o.Status = order.StatusDelivered
	require.NoError(t, repo.CreateWithPayment(ctx, o, p))

	first, confirmed, err := repo.Confirm(ctx, o.ID, now, candidatePayout(o, now))
	require.NoError(t, err)
	require.True(t, confirmed)

	second, confirmed, err := repo.Confirm(ctx, o.ID, now.Add(time.Second), candidatePayout(o, now))
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.Payouts(), 1)
}

func TestConfirmNotConfirmableWithoutPayout(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.GetOrderRepository()

	o, p := newOrder(uuid.New())
	require.NoError(t, repo.CreateWithPayment(ctx, o, p))

	existing, confirmed, err := repo.Confirm(ctx, o.ID, now, candidatePayout(o, now))
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Nil(t, existing)
	assert.Empty(t, store.Payouts())
}

func TestMarkPaidIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := store.GetOrderRepository()
	payouts := store.GetPayoutRepository()

	o, p := newOrder(uuid.New())
	o.Status = order.StatusPaid
	require.NoError(t, orders.CreateWithPayment(ctx, o, p))
	created, _, err := orders.Confirm(ctx, o.ID, now, candidatePayout(o, now))
	require.NoError(t, err)

	due, err := payouts.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := payouts.MarkPaid(ctx, created.ID, "tr_1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = payouts.MarkPaid(ctx, created.ID, "tr_2", now)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := payouts.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPaid, stored.Status)
	assert.Equal(t, "tr_1", *stored.ProviderTransferID)

	due, err = payouts.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestListDueHonorsHoldPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := store.GetOrderRepository()

	o, p := newOrder(uuid.New())
	o.Status = order.StatusPaid
	require.NoError(t, orders.CreateWithPayment(ctx, o, p))
	_, _, err := orders.Confirm(ctx, o.ID, now, candidatePayout(o, now.Add(72*time.Hour)))
	require.NoError(t, err)

	due, err := store.GetPayoutRepository().ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.GetPayoutRepository().ListDue(ctx, now.Add(72*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	clock := now
	idem := store.IdempotencyStore()
	idem.now = func() time.Time { return clock }

	ok, err := idem.SetNX(ctx, "k", []byte("v1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idem.SetNX(ctx, "k", []byte("v2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, found, err := idem.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	clock = clock.Add(2 * time.Minute)
	_, found, err = idem.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordFailureSkipsSettledPayout(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := store.GetOrderRepository()
	payouts := store.GetPayoutRepository()

	o, p := newOrder(uuid.New())
	o.Status = order.StatusPaid
	require.NoError(t, orders.CreateWithPayment(ctx, o, p))
	created, _, err := orders.Confirm(ctx, o.ID, now, candidatePayout(o, now))
	require.NoError(t, err)

	recorded, err := payouts.RecordFailure(ctx, created.ID, "timeout", now)
	require.NoError(t, err)
	assert.True(t, recorded)

	ok, err := payouts.MarkPaid(ctx, created.ID, "tr_1", now)
	require.NoError(t, err)
	require.True(t, ok)

	// a losing concurrent attempt reports its error after the winner paid
	recorded, err = payouts.RecordFailure(ctx, created.ID, "duplicate batch", now)
	require.NoError(t, err)
	assert.False(t, recorded)

	stored, err := payouts.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPaid, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestCancelOnlyPendingWithoutTransfer(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := store.GetOrderRepository()
	payouts := store.GetPayoutRepository()

	ok, err := payouts.Cancel(ctx, uuid.New(), "order refunded", now)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, pendingPayment := newOrder(uuid.New())
	pending.Status = order.StatusPaid
	require.NoError(t, orders.CreateWithPayment(ctx, pending, pendingPayment))
	_, _, err = orders.Confirm(ctx, pending.ID, now, candidatePayout(pending, now))
	require.NoError(t, err)

	ok, err = payouts.Cancel(ctx, pending.ID, "order refunded", now)
	require.NoError(t, err)
	assert.True(t, ok)
	stored, err := payouts.GetByOrderID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, stored.Status)
	assert.Equal(t, "order refunded", stored.FailureReason)

	paid, paidPayment := newOrder(uuid.New())
	paid.Status = order.StatusPaid
	require.NoError(t, orders.CreateWithPayment(ctx, paid, paidPayment))
	created, _, err := orders.Confirm(ctx, paid.ID, now, candidatePayout(paid, now))
	require.NoError(t, err)
	_, err = payouts.MarkPaid(ctx, created.ID, "tr_paid", now)
	require.NoError(t, err)

	ok, err = payouts.Cancel(ctx, paid.ID, "order refunded", now)
	require.NoError(t, err)
	assert.False(t, ok)
	stored, err = payouts.GetByOrderID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPaid, stored.Status)
}
