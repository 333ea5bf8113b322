// Package ffmpeg retrieves pending clips: it downloads the source, trims and
// compresses it with the ffmpeg binary, and stamps the artifact's
// modification time with the capture timestamp so directory listings sort
// chronologically.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
)

// Encoder implements domain.ClipEncoder by shelling out to ffmpeg.
type Encoder struct {
	outputDir   string
	ffmpegPath  string
	crf         int
	maxDuration time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewEncoder creates an encoder writing artifacts under outputDir.
// crf is the x264 constant rate factor (higher compresses more);
// maxDuration is the hard cap applied to every clip.
func NewEncoder(outputDir, ffmpegPath string, crf int, maxDuration time.Duration, logger *slog.Logger) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Encoder{
		outputDir:   outputDir,
		ffmpegPath:  ffmpegPath,
		crf:         crf,
		maxDuration: maxDuration,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// Retrieve downloads, transcodes and stores one clip, returning the artifact
// path. The temporary download is always removed; on any failure no artifact
// remains and the caller may retry.
func (e *Encoder) Retrieve(ctx context.Context, asset domain.FootageAsset) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tempPath := filepath.Join(e.outputDir, "TEMP_"+path.Base(asset.URL))
	if err := e.download(ctx, asset.URL, tempPath); err != nil {
		return "", err
	}
	defer os.Remove(tempPath) //nolint:errcheck // best-effort cleanup

	outPath := filepath.Join(e.outputDir, outputName(asset))
	if err := e.transcode(ctx, tempPath, outPath); err != nil {
		os.Remove(outPath) //nolint:errcheck // drop partial artifact
		return "", err
	}

	// Capture time as mtime keeps artifacts chronologically sortable.
	if err := os.Chtimes(outPath, time.Now(), asset.CaptureTime); err != nil {
		return "", fmt.Errorf("set artifact mtime: %w", err)
	}

	e.logger.Info("clip retrieved",
		"spot_id", asset.SpotID, "cam_number", asset.CamNumber, "path", outPath)
	return outPath, nil
}

func (e *Encoder) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download clip: status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest) //nolint:errcheck
		return fmt.Errorf("write temp file: %w", err)
	}
	return nil
}

func (e *Encoder) transcode(ctx context.Context, src, dest string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, transcodeArgs(src, dest, e.crf, e.maxDuration)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, out)
	}
	return nil
}

// transcodeArgs builds the ffmpeg invocation: overwrite quietly, cap
// duration, compress with the configured CRF.
func transcodeArgs(src, dest string, crf int, maxDuration time.Duration) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", src,
		"-t", strconv.Itoa(int(maxDuration.Seconds())),
		"-crf", strconv.Itoa(crf),
		dest,
	}
}

// outputName formats the artifact filename as
// {spot}_{cam}_{YYYYMMDDTHHMMSSmmm}.mp4, matching the capture timestamp
// embedded in the source URL.
func outputName(asset domain.FootageAsset) string {
	stamp := asset.CaptureTime.Format("20060102T150405") +
		fmt.Sprintf("%03d", asset.CaptureTime.Nanosecond()/int(time.Millisecond))
	return fmt.Sprintf("%s_%d_%s.mp4", asset.SpotID, asset.CamNumber, stamp)
}
