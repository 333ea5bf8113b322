// Package seed imports the spot and camera registry from a YAML file.
// Import is idempotent: re-running against the same file refreshes names and
// rewind links without touching forecast or footage data.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// Registry is the persistence surface the importer writes to.
type Registry interface {
	UpsertSpot(ctx context.Context, spot domain.Spot) error
	UpsertSurfCam(ctx context.Context, cam domain.SurfCam) error
}

type spotFile struct {
	Spots []spotEntry `yaml:"spots"`
}

type spotEntry struct {
	ID   string     `yaml:"id"`
	Name string     `yaml:"name"`
	Cams []camEntry `yaml:"cams"`
}

type camEntry struct {
	Number     int    `yaml:"number"`
	Name       string `yaml:"name"`
	RewindLink string `yaml:"rewind_link"`
}

// Import reads the registry file and upserts every spot and camera it lists.
// The file is validated in full before anything is written.
func Import(ctx context.Context, path string, registry Registry, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read registry file: %w", err)
	}

	var file spotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse registry file: %w", err)
	}
	if err := validate(file); err != nil {
		return err
	}

	var cams int
	for _, spot := range file.Spots {
		if err := registry.UpsertSpot(ctx, domain.Spot{ID: spot.ID, Name: spot.Name}); err != nil {
			return fmt.Errorf("import spot %s: %w", spot.ID, err)
		}
		for _, cam := range spot.Cams {
			if err := registry.UpsertSurfCam(ctx, domain.SurfCam{
				SpotID:     spot.ID,
				CamNumber:  cam.Number,
				Name:       cam.Name,
				RewindLink: cam.RewindLink,
			}); err != nil {
				return fmt.Errorf("import cam %d for spot %s: %w", cam.Number, spot.ID, err)
			}
			cams++
		}
	}

	logger.Info("registry imported", "spots", len(file.Spots), "cams", cams)
	return nil
}

func validate(file spotFile) error {
	if len(file.Spots) == 0 {
		return fmt.Errorf("registry file lists no spots")
	}
	for _, spot := range file.Spots {
		if spot.ID == "" {
			return fmt.Errorf("spot %q has no id", spot.Name)
		}
		for _, cam := range spot.Cams {
			if cam.Number <= 0 {
				return fmt.Errorf("spot %s: cam number must be positive, got %d", spot.ID, cam.Number)
			}
			if cam.RewindLink == "" {
				return fmt.Errorf("spot %s cam %d: rewind_link is required", spot.ID, cam.Number)
			}
		}
	}
	return nil
}
