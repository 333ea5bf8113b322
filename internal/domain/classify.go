package domain

import "time"

// ClassifyPolicy bounds which discovered footage is worth downloading.
// EarlyWindow is how far past the hour boundary a clip may start and still
// count as "first of the hour"; cameras emit several clips per hour and only
// the earliest carries new information.
type ClassifyPolicy struct {
	EarlyWindow time.Duration
}

// DefaultClassifyPolicy matches the historical gate: clips starting within
// the first ten minutes of the hour.
func DefaultClassifyPolicy() ClassifyPolicy {
	return ClassifyPolicy{EarlyWindow: 10 * time.Minute}
}

// ClassifyFootage decides a discovered clip's next lifecycle state. It
// returns StatusPending iff a sunlight window for the capture date exists,
// the capture time falls within [sunrise, sunset] inclusive, and the clip
// starts within policy.EarlyWindow of the hour boundary. Otherwise the clip
// is StatusUnclassified. Pure function; window may be nil when no window is
// known for the capture date.
func ClassifyFootage(capture time.Time, window *SunlightWindow, policy ClassifyPolicy) FootageStatus {
	if window == nil {
		return StatusUnclassified
	}

	isLight := !capture.Before(window.Sunrise) && !capture.After(window.Sunset)
	isEarly := capture.Sub(capture.Truncate(time.Hour)) < policy.EarlyWindow

	if isLight && isEarly {
		return StatusPending
	}
	return StatusUnclassified
}
