// Package domain models Surfline surf forecast and cam rewind data.
//
// # Data Source
//
// Forecast data comes from the Surfline KBYG API under
// https://services.surfline.com/kbyg/spots/forecasts/. One logical fetch is
// five HTTP requests: the core endpoint ("") plus the wave, wind, tides and
// weather category endpoints, all parameterized by spotId, days and
// intervalHours. The category responses are index-parallel time series: every
// category is expected to return the same number of samples with identical
// timestamps at each index. [NormalizeForecast] enforces that before anything
// is persisted.
//
// # Time Handling
//
// The API returns unix epoch seconds plus a per-spot utcOffset in hours. All
// domain times are spot-local wall times carried as time.Time values in the
// UTC location: epoch + offset, zone discarded. Rewind clip URLs embed the
// capture time in the same local wall clock, so daylight comparisons need no
// zone conversion.
//
// # Swell Components
//
// Each wave sample nests up to six swell components, ordered from most to
// least significant. Storage keys components by explicit rank (1..K), so the
// normalizer transposes the per-timestamp component structs into K parallel
// attribute vectors ([SwellSet]) with the original order preserved as rank.
//
// # Rewind Clip URLs
//
// Discovered footage URLs end in a capture timestamp immediately before the
// file extension:
//
//	https://camrewinds.cdn-surfline.com/live/za-jeffreysbay.stream.20230827T151248661.mp4
//
// The segment is YYYYMMDDTHHMMSS followed by a fractional-second suffix
// (milliseconds in observed data). Parsed by [ParseCaptureTime]; the format is
// load-bearing because the capture time is the footage primary key.
//
// # Footage Lifecycle
//
// A footage asset moves forward-only through a small state machine:
//
//	Discovered -> Pending      (daylit and within the early window of the hour)
//	Discovered -> Unclassified (any gate predicate fails; terminal)
//	Pending    -> Downloaded   (encoder produced a local artifact; terminal)
//
// Cameras emit several clips per hour; only the earliest well-lit clip of each
// hour is worth the bandwidth, which is what the [ClassifyFootage] gate
// encodes. The unclassified state persists as the literal "Null", the status
// string the first importer wrote, kept for database compatibility.
package domain
