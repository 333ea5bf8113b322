// Package surfline fetches forecast data from the Surfline KBYG API.
// One logical fetch is five requests: the core endpoint plus the wave, wind,
// tides and weather categories, reshaped into a domain.RawForecast.
package surfline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// DefaultBaseURL is the production KBYG forecast endpoint root.
const DefaultBaseURL = "https://services.surfline.com/kbyg/spots/forecasts"

// ProviderError reports a non-success response from the forecast provider.
// It is fatal to the whole fetch for that spot: no partial category data is
// returned.
type ProviderError struct {
	Endpoint   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	name := e.Endpoint
	if name == "" {
		name = "core"
	}
	return fmt.Sprintf("surfline %s endpoint returned status %d", name, e.StatusCode)
}

// Client implements the forecast provider collaborator. All five category
// requests share one circuit breaker: with five calls per spot per run, a
// provider outage trips fast instead of timing out forty times.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a Surfline client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "surfline",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// FetchForecast fetches and reshapes all five category responses for a spot.
func (c *Client) FetchForecast(ctx context.Context, spotID string, days, intervalHours int) (domain.RawForecast, error) {
	params := url.Values{
		"spotId":        {spotID},
		"days":          {strconv.Itoa(days)},
		"intervalHours": {strconv.Itoa(intervalHours)},
	}

	var core coreResponse
	if err := c.fetchCategory(ctx, "", params, &core); err != nil {
		return domain.RawForecast{}, err
	}
	var wave waveResponse
	if err := c.fetchCategory(ctx, "wave", params, &wave); err != nil {
		return domain.RawForecast{}, err
	}
	var wind windResponse
	if err := c.fetchCategory(ctx, "wind", params, &wind); err != nil {
		return domain.RawForecast{}, err
	}
	var tides tidesResponse
	if err := c.fetchCategory(ctx, "tides", params, &tides); err != nil {
		return domain.RawForecast{}, err
	}
	var weather weatherResponse
	if err := c.fetchCategory(ctx, "weather", params, &weather); err != nil {
		return domain.RawForecast{}, err
	}

	return assemble(spotID, core, wave, wind, tides, weather), nil
}

// fetchCategory performs one breaker-wrapped GET against a category endpoint
// and decodes the JSON body into out.
func (c *Client) fetchCategory(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()

	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("surfline %s request: %w", endpointName(endpoint), err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
			return nil, &ProviderError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("decode surfline %s response: %w", endpointName(endpoint), err)
	}
	return nil
}

func endpointName(endpoint string) string {
	if endpoint == "" {
		return "core"
	}
	return endpoint
}

// assemble reshapes the five decoded responses into the normalizer's input.
// The wave response is split into the surf and swell series; sunlight times
// ride on the weather response.
func assemble(spotID string, core coreResponse, wave waveResponse, wind windResponse, tides tidesResponse, weather weatherResponse) domain.RawForecast {
	raw := domain.RawForecast{
		SpotID:    spotID,
		UTCOffset: core.UTCOffset,
	}

	for _, w := range wave.Data.Wave {
		raw.Surf = append(raw.Surf, domain.SurfSample{
			Timestamp:     w.Timestamp,
			Min:           w.Surf.Min,
			Max:           w.Surf.Max,
			OptimalScore:  w.Surf.OptimalScore,
			HumanRelation: w.Surf.HumanRelation,
			RawMin:        w.Surf.Raw.Min,
			RawMax:        w.Surf.Raw.Max,
			Probability:   w.Probability,
		})

		components := make([]domain.SwellComponentSample, len(w.Swells))
		for i, sw := range w.Swells {
			components[i] = domain.SwellComponentSample{
				Height:       sw.Height,
				Period:       sw.Period,
				Impact:       sw.Impact,
				Power:        sw.Power,
				Direction:    sw.Direction,
				DirectionMin: sw.DirectionMin,
				OptimalScore: sw.OptimalScore,
			}
		}
		raw.Swell = append(raw.Swell, domain.SwellSample{Timestamp: w.Timestamp, Components: components})
	}

	for _, w := range wind.Data.Wind {
		raw.Wind = append(raw.Wind, domain.WindSample{
			Timestamp:     w.Timestamp,
			Speed:         w.Speed,
			Direction:     w.Direction,
			DirectionType: w.DirectionType,
			Gust:          w.Gust,
			OptimalScore:  w.OptimalScore,
		})
	}

	for _, t := range tides.Data.Tides {
		raw.Tide = append(raw.Tide, domain.TideSample{
			Timestamp: t.Timestamp,
			Type:      t.Type,
			Height:    t.Height,
		})
	}

	for _, w := range weather.Data.Weather {
		raw.Weather = append(raw.Weather, domain.WeatherSample{
			Timestamp:   w.Timestamp,
			Temperature: w.Temperature,
			Condition:   w.Condition,
			Pressure:    w.Pressure,
		})
	}

	for _, s := range weather.Data.SunlightTimes {
		raw.Sunlight = append(raw.Sunlight, domain.SunlightTimes{
			Midnight: s.Midnight,
			Dawn:     s.Dawn,
			Sunrise:  s.Sunrise,
			Sunset:   s.Sunset,
			Dusk:     s.Dusk,
		})
	}

	return raw
}

// Surfline API response types. Only the fields this system persists are
// decoded; the API returns considerably more.

type coreResponse struct {
	UTCOffset float64 `json:"utcOffset"`
	Units     struct {
		SwellHeight string `json:"swellHeight"`
		Temperature string `json:"temperature"`
		TideHeight  string `json:"tideHeight"`
		WaveHeight  string `json:"waveHeight"`
		WindSpeed   string `json:"windSpeed"`
	} `json:"units"`
}

type waveResponse struct {
	Data struct {
		Wave []struct {
			Timestamp   int64   `json:"timestamp"`
			Probability float64 `json:"probability"`
			Surf        struct {
				Min           float64 `json:"min"`
				Max           float64 `json:"max"`
				OptimalScore  int     `json:"optimalScore"`
				HumanRelation string  `json:"humanRelation"`
				Raw           struct {
					Min float64 `json:"min"`
					Max float64 `json:"max"`
				} `json:"raw"`
			} `json:"surf"`
			Swells []struct {
				Height       float64 `json:"height"`
				Period       float64 `json:"period"`
				Impact       float64 `json:"impact"`
				Power        float64 `json:"power"`
				Direction    float64 `json:"direction"`
				DirectionMin float64 `json:"directionMin"`
				OptimalScore int     `json:"optimalScore"`
			} `json:"swells"`
		} `json:"wave"`
	} `json:"data"`
}

type windResponse struct {
	Data struct {
		Wind []struct {
			Timestamp     int64   `json:"timestamp"`
			Speed         float64 `json:"speed"`
			Direction     float64 `json:"direction"`
			DirectionType string  `json:"directionType"`
			Gust          float64 `json:"gust"`
			OptimalScore  int     `json:"optimalScore"`
		} `json:"wind"`
	} `json:"data"`
}

type tidesResponse struct {
	Data struct {
		Tides []struct {
			Timestamp int64   `json:"timestamp"`
			Type      string  `json:"type"`
			Height    float64 `json:"height"`
		} `json:"tides"`
	} `json:"data"`
}

type weatherResponse struct {
	Data struct {
		Weather []struct {
			Timestamp   int64   `json:"timestamp"`
			Temperature float64 `json:"temperature"`
			Condition   string  `json:"condition"`
			Pressure    float64 `json:"pressure"`
		} `json:"weather"`
		SunlightTimes []struct {
			Midnight int64 `json:"midnight"`
			Dawn     int64 `json:"dawn"`
			Sunrise  int64 `json:"sunrise"`
			Sunset   int64 `json:"sunset"`
			Dusk     int64 `json:"dusk"`
		} `json:"sunlightTimes"`
	} `json:"data"`
}
