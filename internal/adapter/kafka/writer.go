// Package kafka publishes normalized forecast records to a downstream topic.
// Publishing is optional: with no brokers configured the orchestrator runs
// without a publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// Writer produces forecast messages to a Kafka topic.
// It implements pipeline.ForecastPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch serializes and publishes one spot's forecast records in a
// single WriteMessages call.
func (w *Writer) PublishBatch(ctx context.Context, batch domain.ForecastBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch.Records))
	for i := range batch.Records {
		msg, err := serializeToMessage(batch.Records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish forecast batch: %w", err)
	}
	w.logger.Info("published forecast batch", "spot_id", batch.SpotID, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// forecastMessage is the wire shape for one forecast record.
type forecastMessage struct {
	SpotID            string    `json:"spot_id"`
	ForecastTimestamp string    `json:"forecast_timestamp"`
	UTCOffset         float64   `json:"utc_offset"`
	SurfMin           float64   `json:"surf_min"`
	SurfMax           float64   `json:"surf_max"`
	SurfOptimalScore  int       `json:"surf_optimal_score"`
	SurfHumanRelation string    `json:"surf_human_relation"`
	SwellHeights      []float64 `json:"swell_heights"`
	SwellPeriods      []float64 `json:"swell_periods"`
	SwellDirections   []float64 `json:"swell_directions"`
	WindSpeed         float64   `json:"wind_speed"`
	WindDirection     float64   `json:"wind_direction"`
	WindDirectionType string    `json:"wind_direction_type"`
	WindGust          float64   `json:"wind_gust"`
	Probability       float64   `json:"forecast_probability"`
	TideType          string    `json:"tide_type"`
	TideHeight        float64   `json:"tide_height"`
	Temperature       float64   `json:"weather_temperature"`
	Condition         string    `json:"weather_condition"`
	Pressure          float64   `json:"weather_pressure"`
	IsLight           bool      `json:"is_light"`
}

// serializeToMessage marshals a forecast record into a Kafka message keyed by
// spot and timestamp so repeated refreshes compact to the latest value.
func serializeToMessage(record domain.ForecastRecord) (kafkago.Message, error) {
	stamp := record.Timestamp.Format(timestampLayout)
	data, err := json.Marshal(forecastMessage{
		SpotID:            record.SpotID,
		ForecastTimestamp: stamp,
		UTCOffset:         record.UTCOffset,
		SurfMin:           record.SurfMin,
		SurfMax:           record.SurfMax,
		SurfOptimalScore:  record.SurfOptimalScore,
		SurfHumanRelation: record.SurfHumanRelation,
		SwellHeights:      record.Swells.Height,
		SwellPeriods:      record.Swells.Period,
		SwellDirections:   record.Swells.Direction,
		WindSpeed:         record.WindSpeed,
		WindDirection:     record.WindDirection,
		WindDirectionType: record.WindDirectionType,
		WindGust:          record.WindGust,
		Probability:       record.Probability,
		TideType:          record.TideType,
		TideHeight:        record.TideHeight,
		Temperature:       record.WeatherTemperature,
		Condition:         record.WeatherCondition,
		Pressure:          record.WeatherPressure,
		IsLight:           record.IsLight,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.SpotID + ":" + stamp),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "spot_id", Value: []byte(record.SpotID)},
			{Key: "published_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
