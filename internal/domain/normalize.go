package domain

import (
	"fmt"
	"time"
)

// localDateLayout formats spot-local calendar dates.
const localDateLayout = "2006-01-02"

// RawForecast bundles the five category series of one Surfline fetch, already
// reshaped to snake-case-free Go types by the provider adapter. Timestamps
// are unix epoch seconds as returned by the API.
type RawForecast struct {
	SpotID    string
	UTCOffset float64

	Surf    []SurfSample
	Swell   []SwellSample
	Wind    []WindSample
	Tide    []TideSample
	Weather []WeatherSample

	Sunlight []SunlightTimes
}

// SurfSample is one wave-endpoint surf observation. Probability is the wave
// forecast confidence reported alongside the surf block.
type SurfSample struct {
	Timestamp     int64
	Min           float64
	Max           float64
	OptimalScore  int
	HumanRelation string
	RawMin        float64
	RawMax        float64
	Probability   float64
}

// SwellSample is one wave-endpoint swell observation: the nested component
// structs for a single timestamp, in provider order (most significant first).
type SwellSample struct {
	Timestamp  int64
	Components []SwellComponentSample
}

// SwellComponentSample is one directional wave train within a swell sample.
type SwellComponentSample struct {
	Height       float64
	Period       float64
	Impact       float64
	Power        float64
	Direction    float64
	DirectionMin float64
	OptimalScore int
}

// WindSample is one wind-endpoint observation.
type WindSample struct {
	Timestamp     int64
	Speed         float64
	Direction     float64
	DirectionType string
	Gust          float64
	OptimalScore  int
}

// TideSample is one tides-endpoint observation.
type TideSample struct {
	Timestamp int64
	Type      string
	Height    float64
}

// WeatherSample is one weather-endpoint observation.
type WeatherSample struct {
	Timestamp   int64
	Temperature float64
	Condition   string
	Pressure    float64
}

// SunlightTimes is one day's solar instants from the weather endpoint,
// as unix epoch seconds.
type SunlightTimes struct {
	Midnight int64
	Dawn     int64
	Sunrise  int64
	Sunset   int64
	Dusk     int64
}

// AlignmentError reports a category series that does not line up with the
// surf series: either a length mismatch (Index == -1) or a timestamp mismatch
// at a specific index.
type AlignmentError struct {
	Category string
	Index    int
	Detail   string
}

func (e *AlignmentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s series misaligned: %s", e.Category, e.Detail)
	}
	return fmt.Sprintf("%s series misaligned at index %d: %s", e.Category, e.Index, e.Detail)
}

// NormalizeForecast transforms one raw fetch into a ForecastBatch: N flat
// records in input order plus one sunlight window per distinct local date.
// It fails with *AlignmentError, emitting no records, if any category
// series disagrees with the surf series on length or per-index timestamps,
// or if the swell component count varies across timestamps.
//
// A record's IsLight is true iff its timestamp falls within
// [sunrise, sunset] inclusive of the window matching its local date, and
// false when no window matches that date.
func NormalizeForecast(raw RawForecast) (ForecastBatch, error) {
	if err := checkAlignment(raw); err != nil {
		return ForecastBatch{}, err
	}

	windows := deriveWindows(raw)
	byDate := make(map[string]*SunlightWindow, len(windows))
	for i := range windows {
		byDate[windows[i].Date] = &windows[i]
	}

	records := make([]ForecastRecord, len(raw.Surf))
	for i, surf := range raw.Surf {
		ts := localTime(surf.Timestamp, raw.UTCOffset)

		rec := ForecastRecord{
			SpotID:    raw.SpotID,
			Timestamp: ts,
			UTCOffset: raw.UTCOffset,

			SurfMin:           surf.Min,
			SurfMax:           surf.Max,
			SurfOptimalScore:  surf.OptimalScore,
			SurfHumanRelation: surf.HumanRelation,
			SurfRawMin:        surf.RawMin,
			SurfRawMax:        surf.RawMax,

			Swells: transposeSwells(raw.Swell[i].Components),

			WindSpeed:         raw.Wind[i].Speed,
			WindDirection:     raw.Wind[i].Direction,
			WindDirectionType: raw.Wind[i].DirectionType,
			WindGust:          raw.Wind[i].Gust,
			WindOptimalScore:  raw.Wind[i].OptimalScore,

			Probability: surf.Probability,

			TideType:   raw.Tide[i].Type,
			TideHeight: raw.Tide[i].Height,

			WeatherTemperature: raw.Weather[i].Temperature,
			WeatherCondition:   raw.Weather[i].Condition,
			WeatherPressure:    raw.Weather[i].Pressure,
		}

		if w := byDate[ts.Format(localDateLayout)]; w != nil {
			rec.IsLight = !ts.Before(w.Sunrise) && !ts.After(w.Sunset)
		}

		records[i] = rec
	}

	return ForecastBatch{SpotID: raw.SpotID, Records: records, Windows: windows}, nil
}

// checkAlignment verifies that the swell, wind, tide and weather series have
// the surf series' length and timestamps, and that the swell component count
// is uniform.
func checkAlignment(raw RawForecast) error {
	n := len(raw.Surf)

	type series struct {
		name string
		len  int
		at   func(int) int64
	}
	categories := []series{
		{"swell", len(raw.Swell), func(i int) int64 { return raw.Swell[i].Timestamp }},
		{"wind", len(raw.Wind), func(i int) int64 { return raw.Wind[i].Timestamp }},
		{"tide", len(raw.Tide), func(i int) int64 { return raw.Tide[i].Timestamp }},
		{"weather", len(raw.Weather), func(i int) int64 { return raw.Weather[i].Timestamp }},
	}

	for _, cat := range categories {
		if cat.len != n {
			return &AlignmentError{
				Category: cat.name,
				Index:    -1,
				Detail:   fmt.Sprintf("%d samples, surf has %d", cat.len, n),
			}
		}
		for i := 0; i < n; i++ {
			if got := cat.at(i); got != raw.Surf[i].Timestamp {
				return &AlignmentError{
					Category: cat.name,
					Index:    i,
					Detail:   fmt.Sprintf("timestamp %d, surf has %d", got, raw.Surf[i].Timestamp),
				}
			}
		}
	}

	if n > 0 {
		k := len(raw.Swell[0].Components)
		for i := 1; i < n; i++ {
			if len(raw.Swell[i].Components) != k {
				return &AlignmentError{
					Category: "swell",
					Index:    i,
					Detail:   fmt.Sprintf("%d components, expected %d", len(raw.Swell[i].Components), k),
				}
			}
		}
	}

	return nil
}

// transposeSwells converts K component structs into K parallel attribute
// vectors, preserving component order as rank 1..K.
func transposeSwells(components []SwellComponentSample) SwellSet {
	k := len(components)
	set := SwellSet{
		Height:       make([]float64, k),
		Period:       make([]float64, k),
		Impact:       make([]float64, k),
		Power:        make([]float64, k),
		Direction:    make([]float64, k),
		DirectionMin: make([]float64, k),
		OptimalScore: make([]int, k),
	}
	for i, c := range components {
		set.Height[i] = c.Height
		set.Period[i] = c.Period
		set.Impact[i] = c.Impact
		set.Power[i] = c.Power
		set.Direction[i] = c.Direction
		set.DirectionMin[i] = c.DirectionMin
		set.OptimalScore[i] = c.OptimalScore
	}
	return set
}

// deriveWindows builds one SunlightWindow per distinct local date in the
// sunlight data, keyed by the date of each entry's sunrise. First entry wins
// on duplicate dates.
func deriveWindows(raw RawForecast) []SunlightWindow {
	var windows []SunlightWindow
	seen := make(map[string]bool, len(raw.Sunlight))

	for _, s := range raw.Sunlight {
		sunrise := localTime(s.Sunrise, raw.UTCOffset)
		date := sunrise.Format(localDateLayout)
		if seen[date] {
			continue
		}
		seen[date] = true

		windows = append(windows, SunlightWindow{
			SpotID:   raw.SpotID,
			Date:     date,
			Midnight: localTime(s.Midnight, raw.UTCOffset),
			Dawn:     localTime(s.Dawn, raw.UTCOffset),
			Sunrise:  sunrise,
			Sunset:   localTime(s.Sunset, raw.UTCOffset),
			Dusk:     localTime(s.Dusk, raw.UTCOffset),
		})
	}

	return windows
}

// localTime converts provider epoch seconds plus a UTC offset in hours into
// a spot-local wall time carried in the UTC location.
func localTime(epoch int64, utcOffset float64) time.Time {
	return time.Unix(epoch, 0).UTC().Add(time.Duration(utcOffset * float64(time.Hour)))
}
