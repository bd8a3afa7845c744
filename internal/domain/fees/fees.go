// Package fees computes marketplace fees on a sale amount in minor units.
package fees

import "github.com/shopspring/decimal"

const (
	PlatformFeeBps     = 500
	ProcessingFeeBps   = 300
	ProcessingFeeFixed = 29

	bpsDenominator = 10000
)

// Fees charged on a sale
type Fees struct {
	PlatformFee   int64 `json:"platform_fee"`
	ProcessingFee int64 `json:"processing_fee"`
}

// ComputeFees rounds each fee half away from zero to whole minor units.
// amount must be a non-negative integer amount of minor units.
func ComputeFees(amount int64) Fees {
	a := decimal.NewFromInt(amount)
	denom := decimal.NewFromInt(bpsDenominator)

	platform := a.Mul(decimal.NewFromInt(PlatformFeeBps)).Div(denom).Round(0)
	processing := a.Mul(decimal.NewFromInt(ProcessingFeeBps)).Div(denom).
		Add(decimal.NewFromInt(ProcessingFeeFixed)).
		Round(0)

	return Fees{
		PlatformFee:   platform.IntPart(),
		ProcessingFee: processing.IntPart(),
	}
}

// SellerNet is what the seller receives: the sale amount less the platform fee, never negative.
func SellerNet(amount, platformFee int64) int64 {
	if net := amount - platformFee; net > 0 {
		return net
	}
	return 0
}
