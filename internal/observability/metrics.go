package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast and footage pipelines.
type Metrics struct {
	// Forecast refresh metrics.
	SpotsRefreshed  prometheus.Counter
	SpotErrors      prometheus.Counter
	RecordsUpserted prometheus.Counter
	AlignmentErrors prometheus.Counter
	FetchDuration   prometheus.Histogram

	// Footage lifecycle metrics.
	ClipsDiscovered  prometheus.Counter
	ClipsClassified  *prometheus.CounterVec // labels: status={Pending,Null}
	ClipsDownloaded  prometheus.Counter
	DownloadErrors   prometheus.Counter
	DownloadDuration prometheus.Histogram

	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SpotsRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "spots_refreshed_total",
			Help:      "Total spots whose forecast refresh completed successfully.",
		}),
		SpotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "spot_errors_total",
			Help:      "Total per-spot refresh failures (fetch, normalize, or persist).",
		}),
		RecordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "forecast_records_upserted_total",
			Help:      "Total forecast records written to the database.",
		}),
		AlignmentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "alignment_errors_total",
			Help:      "Total forecast responses rejected for misaligned series.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surf_etl",
			Name:      "forecast_fetch_duration_seconds",
			Help:      "Duration of a complete five-endpoint forecast fetch per spot.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ClipsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "clips_discovered_total",
			Help:      "Total rewind clip URLs recorded from scrape runs.",
		}),
		ClipsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "clips_classified_total",
			Help:      "Clip classifications applied, by resulting status.",
		}, []string{"status"}),
		ClipsDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "clips_downloaded_total",
			Help:      "Total clips downloaded and transcoded successfully.",
		}),
		DownloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf_etl",
			Name:      "download_errors_total",
			Help:      "Total clip download or transcode failures.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surf_etl",
			Name:      "clip_download_duration_seconds",
			Help:      "Duration of one clip download-and-transcode cycle.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surf_etl",
			Name:      "pipeline_running",
			Help:      "1 when a pipeline run is active, 0 when idle.",
		}),
	}

	prometheus.MustRegister(
		m.SpotsRefreshed,
		m.SpotErrors,
		m.RecordsUpserted,
		m.AlignmentErrors,
		m.FetchDuration,
		m.ClipsDiscovered,
		m.ClipsClassified,
		m.ClipsDownloaded,
		m.DownloadErrors,
		m.DownloadDuration,
		m.PipelineRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SpotsRefreshed:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "spots_refreshed_total"}),
		SpotErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "spot_errors_total"}),
		RecordsUpserted:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "forecast_records_upserted_total"}),
		AlignmentErrors:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "alignment_errors_total"}),
		FetchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "surf_etl", Name: "forecast_fetch_duration_seconds"}),
		ClipsDiscovered:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "clips_discovered_total"}),
		ClipsClassified:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "surf_etl", Name: "clips_classified_total"}, []string{"status"}),
		ClipsDownloaded:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "clips_downloaded_total"}),
		DownloadErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "surf_etl", Name: "download_errors_total"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "surf_etl", Name: "clip_download_duration_seconds"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "surf_etl", Name: "pipeline_running"}),
	}
}
