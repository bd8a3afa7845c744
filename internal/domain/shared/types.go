package shared

import (
	"time"

	"github.com/google/uuid"
)

// AuctionEndResult represents the result of ending an auction
type AuctionEndResult struct {
	AuctionID   uuid.UUID
	WinnerID    *uuid.UUID
	FinalPrice  *int64
	Status      string
	Rescheduled bool
	NextCheckAt *time.Time
}
