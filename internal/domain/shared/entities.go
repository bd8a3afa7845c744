package shared

import "github.com/google/uuid"

// User represents an authenticated user in the system
type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Seller carries the payout capability of a user who lists items
type Seller struct {
	ID                  uuid.UUID `json:"id"`
	PayoutsEnabled      bool      `json:"payouts_enabled"`
	TransferDestination *string   `json:"transfer_destination,omitempty"`
}

// CanReceiveTransfers reports whether automatic transfers may be sent to the seller
func (s *Seller) CanReceiveTransfers() bool {
	return s.PayoutsEnabled && s.TransferDestination != nil && *s.TransferDestination != ""
}
