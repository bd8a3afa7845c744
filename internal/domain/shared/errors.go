package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionAlreadyEnded  = errors.New("auction already ended")
	ErrAuctionNotLive       = errors.New("auction is not live")
	ErrAuctionEnded         = errors.New("auction has ended")
	ErrInvalidListing       = errors.New("listing does not accept bids")
	ErrBuyNowUnavailable    = errors.New("listing is not available for buy-now")
	ErrAuctionStateChanged  = errors.New("auction changed concurrently, refresh and retry")
	ErrAuctionNotCancelable = errors.New("auction can no longer be canceled")

	// Bid errors
	ErrBidAmountInvalid = errors.New("bid amount must be greater than 0")
	ErrBidTooLow        = errors.New("bid amount is below current bid plus minimum increment")
	ErrSelfBid          = errors.New("sellers cannot bid on their own listing")
	ErrBidderNotFound   = errors.New("bidder not found")
	ErrBidConflict      = errors.New("bid out of date, refresh and resubmit")
	ErrNoBidsFound      = errors.New("no bids found")

	// Order / payment errors
	ErrSelfPurchase        = errors.New("sellers cannot buy their own listing")
	ErrAlreadySold         = errors.New("listing already sold")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotConfirmable = errors.New("order cannot be confirmed in its current state")
	ErrOrderNotDeliverable = errors.New("order cannot be marked delivered in its current state")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotRetryable = errors.New("payment cannot be retried in its current state")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")

	// User errors
	ErrUserNotFound    = errors.New("user not found")
	ErrSellerNotFound  = errors.New("seller not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindPrecondition    Kind = "precondition"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindDependency      Kind = "dependency"
	KindUnauthenticated Kind = "unauthenticated"
	KindInternal        Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrBidAmountInvalid, KindValidation},
	{ErrBidTooLow, KindValidation},
	{ErrInvalidRequest, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrAuctionIDRequired, KindValidation},
	{ErrMessageTypeRequired, KindValidation},
	{ErrUnknownMessageType, KindValidation},

	{ErrAuctionNotLive, KindPrecondition},
	{ErrAuctionEnded, KindPrecondition},
	{ErrAuctionAlreadyEnded, KindPrecondition},
	{ErrInvalidListing, KindPrecondition},
	{ErrBuyNowUnavailable, KindPrecondition},
	{ErrAuctionNotCancelable, KindPrecondition},
	{ErrOrderNotConfirmable, KindPrecondition},
	{ErrOrderNotDeliverable, KindPrecondition},
	{ErrPaymentNotRetryable, KindPrecondition},

	{ErrSelfBid, KindForbidden},
	{ErrSelfPurchase, KindForbidden},
	{ErrForbidden, KindForbidden},

	{ErrBidConflict, KindConflict},
	{ErrAlreadySold, KindConflict},
	{ErrAuctionStateChanged, KindConflict},

	{ErrAuctionNotFound, KindNotFound},
	{ErrBidderNotFound, KindNotFound},
	{ErrOrderNotFound, KindNotFound},
	{ErrPaymentNotFound, KindNotFound},
	{ErrPayoutNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrSellerNotFound, KindNotFound},
	{ErrNoBidsFound, KindNotFound},

	{ErrProviderUnavailable, KindDependency},

	{ErrUnauthenticated, KindUnauthenticated},
	{ErrInvalidSignature, KindUnauthenticated},
}

// Classify returns the Kind of err, KindInternal when it is not a domain error.
func Classify(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
