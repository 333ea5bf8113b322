// Package rewind talks to the scraper sidecar that walks Surfline rewind
// pages with a real browser. The sidecar owns the login/CAPTCHA mechanics;
// this client only carries the collaborator contract: camera locators in,
// discovered clip URLs out.
package rewind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// Client implements domain.ClipScraper against the sidecar's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a scraper client. The timeout bounds one whole scrape
// run, which drives a browser and can legitimately take minutes.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type scrapeRequestBody struct {
	Cameras      map[string]string `json:"cameras"`
	LookbackDays int               `json:"lookback_days"`
	Headless     bool              `json:"headless"`
}

type scrapeResponseBody struct {
	Results map[string][]string `json:"results"`
}

// ScrapeClips submits one scrape run and returns discovered clip URLs per
// camera key, in page order.
func (c *Client) ScrapeClips(ctx context.Context, req domain.ScrapeRequest) (map[string][]string, error) {
	payload, err := json.Marshal(scrapeRequestBody{
		Cameras:      req.Cameras,
		LookbackDays: req.LookbackDays,
		Headless:     req.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("encode scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create scrape request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scraper returned status %d: %s", resp.StatusCode, body)
	}

	var decoded scrapeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode scrape response: %w", err)
	}

	total := 0
	for _, urls := range decoded.Results {
		total += len(urls)
	}
	c.logger.Info("scrape run complete", "cameras", len(req.Cameras), "urls", total)

	return decoded.Results, nil
}
