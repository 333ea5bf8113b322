package domain

import "context"

// ForecastProvider fetches one spot's raw multi-category forecast.
type ForecastProvider interface {
	FetchForecast(ctx context.Context, spotID string, days, intervalHours int) (RawForecast, error)
}

// ScrapeRequest asks the scraper collaborator to walk a set of camera rewind
// pages. Cameras maps an opaque caller-chosen key to the camera's page
// locator; the response echoes the same keys.
type ScrapeRequest struct {
	Cameras      map[string]string
	LookbackDays int
	Headless     bool
}

// ClipScraper discovers rewind clip URLs. Returned lists preserve the order
// the clips appear on the page; each URL embeds its capture timestamp (see
// ParseCaptureTime).
type ClipScraper interface {
	ScrapeClips(ctx context.Context, req ScrapeRequest) (map[string][]string, error)
}

// ClipEncoder retrieves one pending clip and produces a local artifact,
// returning its storage path. Implementations are expected to cap duration,
// compress, and set the artifact's modification time to the capture
// timestamp for downstream chronological sorting.
type ClipEncoder interface {
	Retrieve(ctx context.Context, asset FootageAsset) (string, error)
}
