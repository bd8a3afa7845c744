package auction

import "time"

// EffectiveEnd is the extended close time when anti-snipe has fired, the
// nominal end otherwise. Nil means the auction has no timed close.
func EffectiveEnd(a *Auction) *time.Time {
	if a.ExtendedTime != nil {
		return a.ExtendedTime
	}
	return a.EndTime
}

// IsLive reports whether the auction is LIVE and its effective end lies after now.
func IsLive(a *Auction, now time.Time) bool {
	if a.Status != StatusLive {
		return false
	}
	end := EffectiveEnd(a)
	return end == nil || end.After(now)
}

// HasEnded reports whether the effective end is at or before now.
func HasEnded(a *Auction, now time.Time) bool {
	end := EffectiveEnd(a)
	return end != nil && !end.After(now)
}

// ComputeExtendedEndTime anchors the extension to the later of baseEnd and now,
// so a counter-bid always has at least window after any accepted bid.
func ComputeExtendedEndTime(baseEnd *time.Time, window time.Duration, now time.Time) time.Time {
	base := now
	if baseEnd != nil && baseEnd.After(now) {
		base = *baseEnd
	}
	return base.Add(window)
}
