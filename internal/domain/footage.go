package domain

import (
	"fmt"
	"strings"
	"time"
)

// FootageStatus is the forward-only lifecycle state of a footage asset.
// Values are the literal strings persisted in the status column.
type FootageStatus string

const (
	// StatusDiscovered marks a freshly recorded URL, before classification.
	StatusDiscovered FootageStatus = "Discovered"
	// StatusUnclassified is the terminal state for clips no retrieval policy
	// matched. Persisted as "Null", the string the original importer wrote.
	StatusUnclassified FootageStatus = "Null"
	// StatusPending marks a clip queued for retrieval.
	StatusPending FootageStatus = "Pending"
	// StatusDownloaded is the terminal state after the encoder stored an artifact.
	StatusDownloaded FootageStatus = "Downloaded"
)

// CanTransition reports whether moving from s to next is a legal forward
// step. Reapplying the current status is allowed (idempotent no-op).
func (s FootageStatus) CanTransition(next FootageStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDiscovered:
		return next == StatusPending || next == StatusUnclassified
	case StatusPending:
		return next == StatusDownloaded
	default:
		return false
	}
}

// captureTimeLayout parses the seconds-precision prefix of a clip timestamp.
const captureTimeLayout = "20060102T150405"

// ParseCaptureTime extracts the capture timestamp embedded in a rewind clip
// URL's final path segment, formatted YYYYMMDDTHHMMSS plus a fractional-second
// suffix of up to nine digits, immediately before the file extension:
//
//	.../za-jeffreysbay.stream.20230827T151248661.mp4 -> 2023-08-27 15:12:48.661
//
// The returned time is a spot-local wall time in the UTC location.
func ParseCaptureTime(url string) (time.Time, error) {
	parts := strings.Split(url, ".")
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("parse capture time: no timestamp segment in %q", url)
	}
	stamp := parts[len(parts)-2]

	if len(stamp) < len(captureTimeLayout) {
		return time.Time{}, fmt.Errorf("parse capture time: segment %q too short", stamp)
	}

	base, err := time.Parse(captureTimeLayout, stamp[:len(captureTimeLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse capture time: %w", err)
	}

	frac := stamp[len(captureTimeLayout):]
	if len(frac) > 9 {
		return time.Time{}, fmt.Errorf("parse capture time: fractional part %q too long", frac)
	}
	var nanos int64
	for _, r := range frac {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("parse capture time: invalid fractional part %q", frac)
		}
		nanos = nanos*10 + int64(r-'0')
	}
	for i := len(frac); i < 9; i++ {
		nanos *= 10
	}

	return base.Add(time.Duration(nanos)), nil
}
