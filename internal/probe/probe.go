// Package probe wraps ffprobe to answer the two questions the ingestion
// pipeline has about an uploaded file: how long is it, and does it carry
// the codecs we accept.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/castorhq/castor/pkg/logger"
	"github.com/castorhq/castor/pkg/proc"
)

var log = logger.Get("Probe")

// ErrProbeFailed indicates ffprobe exited with a non-zero status, meaning
// the file could not be inspected at all.
var ErrProbeFailed = errors.New("media probe exited with failure")

const (
	// The accepted codec pair. Uploads must carry an h264 video stream
	// and an aac audio stream to be playable in-browser without
	// re-encoding.
	requiredVideoCodec = "h264"
	requiredAudioCodec = "aac"

	probeTimeout = 60 * time.Second
)

type (
	Config struct {
		FfprobeBinPath string `yaml:"ffprobe_path" env:"FFPROBE_PATH" env-default:"ffprobe"`
	}

	// Result reports what the probe learned about a media file. A file
	// that ffprobe could read but whose metadata was unusable yields a
	// zero-valued Result rather than an error, as codec presence is the
	// only validity gate and duration is optional.
	Result struct {
		DurationSeconds     int
		ValidFormat         bool
		VideoCodecCompliant bool
		AudioCodecCompliant bool
	}

	Prober struct {
		bin string
	}

	// ffprobeOutput mirrors the JSON document produced by
	// 'ffprobe -print_format json -show_format -show_streams'.
	ffprobeOutput struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecName string `json:"codec_name"`
			CodecType string `json:"codec_type"`
		} `json:"streams"`
	}
)

func New(config Config) *Prober {
	return &Prober{bin: config.FfprobeBinPath}
}

// Probe runs ffprobe against the file at the given path, bounded to 60
// seconds of execution. A timeout error wraps proc.ErrTimeout; a non-zero
// exit wraps ErrProbeFailed. Both leave the result nil.
func (prober *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	outcome, err := proc.Run(ctx, proc.Command{
		Bin: prober.bin,
		Args: []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
		Timeout: probeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	if outcome.ExitCode != 0 {
		return nil, fmt.Errorf("%w: exit code %d probing %s", ErrProbeFailed, outcome.ExitCode, path)
	}

	return parseProbeOutput(outcome.Output), nil
}

// parseProbeOutput extracts the duration and codec compliance from the
// ffprobe JSON. Malformed output from a successful ffprobe run is treated
// as an invalid format, not a failure.
func parseProbeOutput(raw []byte) *Result {
	var output ffprobeOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		log.Emit(logger.WARNING, "Unparseable ffprobe output, treating media as invalid: %s\n", err.Error())
		return &Result{}
	}

	result := &Result{}
	if duration, err := strconv.ParseFloat(output.Format.Duration, 64); err == nil && duration > 0 {
		result.DurationSeconds = int(math.Round(duration))
	}

	for _, stream := range output.Streams {
		switch {
		case stream.CodecType == "video" && stream.CodecName == requiredVideoCodec:
			result.VideoCodecCompliant = true
		case stream.CodecType == "audio" && stream.CodecName == requiredAudioCodec:
			result.AudioCodecCompliant = true
		}
	}

	result.ValidFormat = result.VideoCodecCompliant && result.AudioCodecCompliant
	return result
}
