package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExpirationSchedule tracks when each live auction should next be checked for closing
type ExpirationSchedule interface {
	// ScheduleAuction adds or moves the auction's close check to at
	ScheduleAuction(ctx context.Context, auctionID uuid.UUID, at time.Time) error
}
