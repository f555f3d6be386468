// Package thumbnail extracts a single scaled JPEG frame from a stored
// video using ffmpeg. A video record is never persisted without one.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/castorhq/castor/pkg/logger"
	"github.com/castorhq/castor/pkg/proc"
)

var log = logger.Get("Thumbnail")

// ErrGenerationFailed indicates ffmpeg exited with a non-zero status and
// no thumbnail was produced.
var ErrGenerationFailed = errors.New("thumbnail generation failed")

const (
	generateTimeout = 90 * time.Second

	// jpegQuality trades a little quality for encode speed; thumbnails
	// are small enough that the difference is invisible.
	jpegQuality = "5"
)

type (
	Config struct {
		FfmpegBinPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH" env-default:"ffmpeg"`
		Width         int    `yaml:"width" env:"THUMBNAIL_WIDTH" env-default:"320"`
		Height        int    `yaml:"height" env:"THUMBNAIL_HEIGHT" env-default:"180"`
	}

	Generator struct {
		config Config
	}
)

func New(config Config) *Generator {
	return &Generator{config: config}
}

// CaptureTimestamp selects the seek offset (in seconds) for the frame to
// capture. Early frames are cheap to seek, so anything past the first few
// seconds is avoided: videos shorter than 4 seconds capture at 1s, all
// others at min(2, duration/4) using integer division.
func CaptureTimestamp(durationSeconds int) int {
	if durationSeconds < 4 {
		return 1
	}

	timestamp := durationSeconds / 4
	if timestamp > 2 {
		timestamp = 2
	}

	return timestamp
}

// Generate writes a single-frame JPEG for the video at videoPath to
// outputPath, overwriting any existing file there so retries are safe.
// Execution is bounded to 90 seconds and decoding is single-threaded to
// avoid resource contention when uploads are processed concurrently.
func (generator *Generator) Generate(ctx context.Context, videoPath string, outputPath string, durationSeconds int) error {
	timestamp := CaptureTimestamp(durationSeconds)
	scale := fmt.Sprintf("scale=%d:%d:flags=fast_bilinear", generator.config.Width, generator.config.Height)

	log.Emit(logger.DEBUG, "Capturing thumbnail for %s at %ds offset\n", videoPath, timestamp)
	outcome, err := proc.Run(ctx, proc.Command{
		Bin: generator.config.FfmpegBinPath,
		Args: []string{
			"-i", videoPath,
			"-ss", strconv.Itoa(timestamp),
			"-vframes", "1",
			"-vf", scale,
			"-f", "mjpeg",
			"-q:v", jpegQuality,
			"-threads", "1",
			"-y",
			outputPath,
		},
		Timeout:     generateTimeout,
		MergeStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to generate thumbnail for %s: %w", videoPath, err)
	}

	if outcome.ExitCode != 0 {
		log.Emit(logger.ERROR, "Thumbnail generation for %s failed with exit code %d, output: %s\n",
			videoPath, outcome.ExitCode, outputTail(outcome.Output))
		return fmt.Errorf("%w: ffmpeg exited with code %d", ErrGenerationFailed, outcome.ExitCode)
	}

	log.Emit(logger.SUCCESS, "Generated thumbnail %s\n", outputPath)
	return nil
}

// outputTail trims captured tool output for logging; ffmpeg is extremely
// chatty and only the end of its output carries the actual error.
func outputTail(output []byte) string {
	const maxTail = 2048
	if len(output) > maxTail {
		return "..." + string(output[len(output)-maxTail:])
	}

	return string(output)
}
