package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/castorhq/castor/pkg/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compliantOutput = `{
	"streams": [
		{"codec_name": "h264", "codec_type": "video"},
		{"codec_name": "aac", "codec_type": "audio"}
	],
	"format": {"duration": "10.024000"}
}`

func Test_ParseProbeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		expected Result
	}{
		{
			name: "compliant video and audio",
			raw:  compliantOutput,
			expected: Result{
				DurationSeconds:     10,
				ValidFormat:         true,
				VideoCodecCompliant: true,
				AudioCodecCompliant: true,
			},
		},
		{
			name: "duration rounds ties away from zero",
			raw: `{"streams": [{"codec_name": "h264", "codec_type": "video"},
				{"codec_name": "aac", "codec_type": "audio"}], "format": {"duration": "2.5"}}`,
			expected: Result{
				DurationSeconds:     3,
				ValidFormat:         true,
				VideoCodecCompliant: true,
				AudioCodecCompliant: true,
			},
		},
		{
			name: "missing audio stream rejected",
			raw:  `{"streams": [{"codec_name": "h264", "codec_type": "video"}], "format": {"duration": "8.2"}}`,
			expected: Result{
				DurationSeconds:     8,
				VideoCodecCompliant: true,
			},
		},
		{
			name: "missing video stream rejected",
			raw:  `{"streams": [{"codec_name": "aac", "codec_type": "audio"}], "format": {"duration": "8.2"}}`,
			expected: Result{
				DurationSeconds:     8,
				AudioCodecCompliant: true,
			},
		},
		{
			name: "wrong codecs rejected",
			raw: `{"streams": [{"codec_name": "hevc", "codec_type": "video"},
				{"codec_name": "opus", "codec_type": "audio"}], "format": {"duration": "5"}}`,
			expected: Result{DurationSeconds: 5},
		},
		{
			name: "codec name on wrong stream type does not count",
			raw: `{"streams": [{"codec_name": "aac", "codec_type": "video"},
				{"codec_name": "h264", "codec_type": "audio"}], "format": {"duration": "5"}}`,
			expected: Result{DurationSeconds: 5},
		},
		{
			name:     "malformed output is invalid, not fatal",
			raw:      `this is not json`,
			expected: Result{},
		},
		{
			name:     "missing duration is tolerated",
			raw:      `{"streams": [{"codec_name": "h264", "codec_type": "video"}, {"codec_name": "aac", "codec_type": "audio"}], "format": {}}`,
			expected: Result{ValidFormat: true, VideoCodecCompliant: true, AudioCodecCompliant: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, &tt.expected, parseProbeOutput([]byte(tt.raw)))
		})
	}
}

// stubProbeBin writes an executable shell script that mimics ffprobe,
// letting the full Probe path run without media tooling installed.
func stubProbeBin(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func Test_Probe_ParsesToolOutput(t *testing.T) {
	t.Parallel()

	bin := stubProbeBin(t, fmt.Sprintf("cat <<'EOF'\n%s\nEOF", compliantOutput))
	prober := New(Config{FfprobeBinPath: bin})

	result, err := prober.Probe(context.Background(), "/some/video.mp4")
	require.NoError(t, err)
	assert.True(t, result.ValidFormat)
	assert.Equal(t, 10, result.DurationSeconds)
}

func Test_Probe_NonZeroExit(t *testing.T) {
	t.Parallel()

	bin := stubProbeBin(t, "exit 2")
	prober := New(Config{FfprobeBinPath: bin})

	result, err := prober.Probe(context.Background(), "/some/video.mp4")
	require.ErrorIs(t, err, ErrProbeFailed)
	assert.Nil(t, result)
}

func Test_Probe_CancelledContext(t *testing.T) {
	t.Parallel()

	bin := stubProbeBin(t, "sleep 30")
	prober := New(Config{FfprobeBinPath: bin})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := prober.Probe(ctx, "/some/video.mp4")
	require.Error(t, err)
	assert.NotErrorIs(t, err, proc.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "probe must abandon the tool as soon as the context expires")
}
