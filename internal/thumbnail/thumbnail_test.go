package thumbnail_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/castorhq/castor/internal/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CaptureTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		duration int
		expected int
	}{
		{0, 1},
		{1, 1},
		{3, 1},
		{4, 1},  // min(2, 4/4) = 1
		{7, 1},  // min(2, 7/4) = 1
		{8, 2},  // min(2, 8/4) = 2
		{10, 2}, // min(2, 10/4) = 2
		{20, 2},
		{3600, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, thumbnail.CaptureTimestamp(tt.duration), "duration %d", tt.duration)
	}
}

// stubFfmpegBin writes an executable shell script standing in for ffmpeg.
// It records its argument list so assertions can be made against the
// invocation, then runs the provided body.
func stubFfmpegBin(t *testing.T, body string) (bin string, argsFile string) {
	t.Helper()

	dir := t.TempDir()
	bin = filepath.Join(dir, "ffmpeg")
	argsFile = filepath.Join(dir, "args")

	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n" + body
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func Test_Generate_InvokesToolCorrectly(t *testing.T) {
	t.Parallel()

	// The stub "encodes" by copying a marker to the output path, which is
	// always the final argument.
	bin, argsFile := stubFfmpegBin(t, `eval "out=\${$#}"; echo jpeg > "$out"`)
	outputPath := filepath.Join(t.TempDir(), "thumb.jpg")

	generator := thumbnail.New(thumbnail.Config{FfmpegBinPath: bin, Width: 320, Height: 180})
	require.NoError(t, generator.Generate(context.Background(), "/videos/in.mp4", outputPath, 10))

	assert.FileExists(t, outputPath)

	rawArgs, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := string(rawArgs)
	assert.Contains(t, args, "-i /videos/in.mp4")
	assert.Contains(t, args, "-ss 2", "10s video must be captured at the 2s mark")
	assert.Contains(t, args, "-vframes 1")
	assert.Contains(t, args, "scale=320:180:flags=fast_bilinear")
	assert.Contains(t, args, "-f mjpeg")
	assert.Contains(t, args, "-threads 1")
	assert.Contains(t, args, "-y", "output must be overwritten so retries are idempotent")
}

func Test_Generate_ShortVideoCapturedAtOneSecond(t *testing.T) {
	t.Parallel()

	bin, argsFile := stubFfmpegBin(t, "")
	generator := thumbnail.New(thumbnail.Config{FfmpegBinPath: bin, Width: 320, Height: 180})
	require.NoError(t, generator.Generate(context.Background(), "in.mp4", "out.jpg", 3))

	rawArgs, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(rawArgs), "-ss 1"))
}

func Test_Generate_NonZeroExitIsFatal(t *testing.T) {
	t.Parallel()

	bin, _ := stubFfmpegBin(t, "echo 'Conversion failed!' >&2; exit 1")
	generator := thumbnail.New(thumbnail.Config{FfmpegBinPath: bin, Width: 320, Height: 180})

	err := generator.Generate(context.Background(), "in.mp4", "out.jpg", 10)
	require.ErrorIs(t, err, thumbnail.ErrGenerationFailed)
}
