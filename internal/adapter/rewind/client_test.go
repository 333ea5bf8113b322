package rewind

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_ScrapeClips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Cameras      map[string]string `json:"cameras"`
			LookbackDays int               `json:"lookback_days"`
			Headless     bool              `json:"headless"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"a/1": "spot-a/abc123"}, body.Cameras)
		assert.Equal(t, 2, body.LookbackDays)
		assert.True(t, body.Headless)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results": {"a/1": [
			"https://cdn.example.com/a.stream.20230827T100012345.mp4",
			"https://cdn.example.com/a.stream.20230827T110009000.mp4"
		]}}`) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	results, err := c.ScrapeClips(context.Background(), domain.ScrapeRequest{
		Cameras:      map[string]string{"a/1": "spot-a/abc123"},
		LookbackDays: 2,
		Headless:     true,
	})

	require.NoError(t, err)
	require.Len(t, results["a/1"], 2)
	assert.Equal(t, "https://cdn.example.com/a.stream.20230827T100012345.mp4", results["a/1"][0])
}

func TestClient_ScrapeClips_SidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "browser crashed") //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	_, err := c.ScrapeClips(context.Background(), domain.ScrapeRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "browser crashed")
}
