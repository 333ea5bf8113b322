package domain

import "time"

// Spot is a named surf location, the top-level partition key for all
// forecast and footage data. Name may be empty for stub rows created by the
// first forecast or footage reference to an unknown ID.
type Spot struct {
	ID   string
	Name string
}

// SurfCam identifies one camera at a spot. RewindLink is the opaque locator
// the scraper uses to find the camera's rewind page, e.g.
// "jeffreys-bay-j-bay-/5f7ca72ba43acae7a74a4878".
type SurfCam struct {
	SpotID     string
	CamNumber  int
	Name       string
	RewindLink string
}

// SwellSet holds the transposed swell components for one forecast timestamp:
// seven parallel vectors of equal length K, index i holding rank i+1.
type SwellSet struct {
	Height       []float64
	Period       []float64
	Impact       []float64
	Power        []float64
	Direction    []float64
	DirectionMin []float64
	OptimalScore []int
}

// Len returns the number of swell components (K).
func (s SwellSet) Len() int { return len(s.Height) }

// ForecastRecord is one flat per-timestamp forecast row for a spot.
// Timestamp is spot-local wall time.
type ForecastRecord struct {
	SpotID    string
	Timestamp time.Time
	UTCOffset float64

	SurfMin           float64
	SurfMax           float64
	SurfOptimalScore  int
	SurfHumanRelation string
	SurfRawMin        float64
	SurfRawMax        float64

	Swells SwellSet

	WindSpeed         float64
	WindDirection     float64
	WindDirectionType string
	WindGust          float64
	WindOptimalScore  int

	Probability float64

	TideType   string
	TideHeight float64

	WeatherTemperature float64
	WeatherCondition   string
	WeatherPressure    float64

	IsLight bool
}

// SunlightWindow holds the five solar reference instants for a spot and local
// calendar date. Date is formatted as "2006-01-02".
type SunlightWindow struct {
	SpotID   string
	Date     string
	Midnight time.Time
	Dawn     time.Time
	Sunrise  time.Time
	Sunset   time.Time
	Dusk     time.Time
}

// ForecastBatch is one spot's normalized fetch result: the flat records in
// input order plus the sunlight windows derived from the same response.
type ForecastBatch struct {
	SpotID  string
	Records []ForecastRecord
	Windows []SunlightWindow
}

// WindowFor returns the sunlight window matching the given local date, or nil.
func (b ForecastBatch) WindowFor(date string) *SunlightWindow {
	for i := range b.Windows {
		if b.Windows[i].Date == date {
			return &b.Windows[i]
		}
	}
	return nil
}

// FootageKey is the composite identity of one discovered clip.
type FootageKey struct {
	SpotID      string
	CamNumber   int
	CaptureTime time.Time
}

// FootageAsset is one discovered camera clip and its lifecycle state.
// URL is set once at discovery and never cleared. StoragePath is set only
// when the asset reaches StatusDownloaded.
type FootageAsset struct {
	FootageKey
	URL               string
	ForecastTimestamp *time.Time
	Status            FootageStatus
	StoragePath       string
	DiscoveredAt      time.Time
}
