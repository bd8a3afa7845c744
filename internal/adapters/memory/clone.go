package memory

import (
	"live-auction-service/internal/domain/auction"
	"live-auction-service/internal/domain/order"
	"live-auction-service/internal/domain/payout"
)

func cloneAuction(a auction.Auction) *auction.Auction {
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		a.BuyNowPrice = &v
	}
	if a.EndTime != nil {
		v := *a.EndTime
		a.EndTime = &v
	}
	if a.ExtendedTime != nil {
		v := *a.ExtendedTime
		a.ExtendedTime = &v
	}
	return &a
}

func cloneOrder(o order.Order) *order.Order {
	if o.ConfirmedAt != nil {
		v := *o.ConfirmedAt
		o.ConfirmedAt = &v
	}
	return &o
}

func clonePayment(p order.Payment) *order.Payment {
	if p.ProviderPaymentIntent != nil {
		v := *p.ProviderPaymentIntent
		p.ProviderPaymentIntent = &v
	}
	if p.RefundedAt != nil {
		v := *p.RefundedAt
		p.RefundedAt = &v
	}
	return &p
}

func clonePayout(p payout.Payout) *payout.Payout {
	if p.ProviderTransferID != nil {
		v := *p.ProviderTransferID
		p.ProviderTransferID = &v
	}
	if p.PaidAt != nil {
		v := *p.PaidAt
		p.PaidAt = &v
	}
	return &p
}
