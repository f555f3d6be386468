package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/castorhq/castor/internal/media"
	"github.com/castorhq/castor/internal/probe"
	"github.com/castorhq/castor/pkg/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	result     *probe.Result
	err        error
	probedPath string
}

func (fake *fakeProber) Probe(_ context.Context, path string) (*probe.Result, error) {
	fake.probedPath = path
	if fake.err != nil {
		return nil, fake.err
	}
	return fake.result, nil
}

type fakeThumbnailer struct {
	err        error
	videoPath  string
	outputPath string
	duration   int
}

func (fake *fakeThumbnailer) Generate(_ context.Context, videoPath string, outputPath string, durationSeconds int) error {
	fake.videoPath = videoPath
	fake.outputPath = outputPath
	fake.duration = durationSeconds
	if fake.err != nil {
		return fake.err
	}
	return os.WriteFile(outputPath, []byte("jpeg"), 0644)
}

// fakeStorage allocates fixed relative paths beneath a per-test temp
// directory and records every deletion request.
type fakeStorage struct {
	base    string
	deleted []string
}

func (fake *fakeStorage) AllocateVideoPath() string     { return "videos/2024/06/01/aaaa.mp4" }
func (fake *fakeStorage) AllocateThumbnailPath() string { return "thumbs/2024/06/01/bbbb.jpg" }

func (fake *fakeStorage) Resolve(relativePath string) (string, error) {
	return filepath.Join(fake.base, relativePath), nil
}

func (fake *fakeStorage) EnsureParent(relativePath string) error {
	return os.MkdirAll(filepath.Join(fake.base, filepath.Dir(relativePath)), 0755)
}

func (fake *fakeStorage) Delete(relativePath string) {
	fake.deleted = append(fake.deleted, relativePath)
	_ = os.Remove(filepath.Join(fake.base, relativePath))
}

type fakeDataStore struct {
	err   error
	saved *media.Video
}

func (fake *fakeDataStore) SaveVideo(video *media.Video) error {
	if fake.err != nil {
		return fake.err
	}
	video.ID = 42
	fake.saved = video
	return nil
}

type pipelineHarness struct {
	pipeline *Pipeline
	prober   *fakeProber
	thumbs   *fakeThumbnailer
	storage  *fakeStorage
	data     *fakeDataStore
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	harness := &pipelineHarness{
		prober: &fakeProber{result: &probe.Result{
			DurationSeconds:     10,
			ValidFormat:         true,
			VideoCodecCompliant: true,
			AudioCodecCompliant: true,
		}},
		thumbs:  &fakeThumbnailer{},
		storage: &fakeStorage{base: t.TempDir()},
		data:    &fakeDataStore{},
	}

	harness.pipeline = New(
		Config{MaxUploadSizeBytes: 1 << 20},
		harness.prober, harness.thumbs, harness.storage, harness.data,
	)
	return harness
}

func validUpload() *Upload {
	return &Upload{
		Title:       " Holiday Clip ",
		Description: "A short clip",
		Keywords:    "Sun, sea #beach",
		Filename:    "holiday.MP4",
		ContentType: "video/mp4",
		Size:        11,
		Content:     strings.NewReader("far too mp4"),
		UploaderID:  7,
	}
}

func assertKind(t *testing.T, err error, expected ErrorKind) {
	t.Helper()

	kind, ok := KindOf(err)
	require.True(t, ok, "expected a pipeline error, got %v", err)
	assert.Equal(t, expected, kind)
}

// countFiles walks the storage base and counts regular files, used to
// prove that failed ingestions leave nothing behind.
func countFiles(t *testing.T, base string) int {
	t.Helper()

	count := 0
	err := filepath.Walk(base, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func Test_Pipeline_Ingest_CommitsValidUpload(t *testing.T) {
	t.Parallel()

	harness := newPipelineHarness(t)
	video, err := harness.pipeline.Ingest(context.Background(), validUpload())
	require.NoError(t, err)
	require.NotNil(t, video)

	assert.Equal(t, int64(42), video.ID)
	assert.Equal(t, "Holiday Clip", video.Title)
	assert.Equal(t, "sun,sea,beach", video.Keywords)
	assert.Equal(t, "holiday.MP4", video.OriginalFilename)
	assert.Equal(t, int64(11), video.SizeBytes)
	assert.Equal(t, 10, video.DurationSeconds)
	assert.Equal(t, media.VisibilityPublic, video.Visibility)
	assert.Equal(t, harness.storage.AllocateVideoPath(), video.StoragePath)
	assert.Equal(t, harness.storage.AllocateThumbnailPath(), video.ThumbPath)

	stored, readErr := os.ReadFile(filepath.Join(harness.storage.base, video.StoragePath))
	require.NoError(t, readErr)
	assert.Equal(t, "far too mp4", string(stored))

	assert.FileExists(t, filepath.Join(harness.storage.base, video.ThumbPath))
	assert.Equal(t, 10, harness.thumbs.duration)
	assert.Equal(t, harness.prober.probedPath, harness.thumbs.videoPath)
	assert.Empty(t, harness.storage.deleted)
}

func Test_Pipeline_Ingest_RejectsInvalidUploadsBeforeWriting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary string
		mutate  func(*Upload)
	}{
		{"missing content", func(u *Upload) { u.Content = nil; u.Size = 0 }},
		{"oversized", func(u *Upload) { u.Size = (1 << 20) + 1 }},
		{"wrong extension", func(u *Upload) { u.Filename = "holiday.mkv" }},
		{"non-video content type", func(u *Upload) { u.ContentType = "application/octet-stream" }},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()

			harness := newPipelineHarness(t)
			upload := validUpload()
			test.mutate(upload)

			video, err := harness.pipeline.Ingest(context.Background(), upload)
			assert.Nil(t, video)
			assertKind(t, err, ValidationFailure)

			assert.Zero(t, countFiles(t, harness.storage.base))
			assert.Empty(t, harness.storage.deleted)
		})
	}
}

func Test_Pipeline_Ingest_RollsBackStoredFileWhenFormatRejected(t *testing.T) {
	t.Parallel()

	harness := newPipelineHarness(t)
	harness.prober.result = &probe.Result{
		DurationSeconds:     10,
		ValidFormat:         false,
		VideoCodecCompliant: true,
		AudioCodecCompliant: false,
	}

	video, err := harness.pipeline.Ingest(context.Background(), validUpload())
	assert.Nil(t, video)
	assertKind(t, err, FormatRejected)

	assert.Contains(t, harness.storage.deleted, harness.storage.AllocateVideoPath())
	assert.Zero(t, countFiles(t, harness.storage.base))
	assert.Nil(t, harness.data.saved)
}

func Test_Pipeline_Ingest_ClassifiesProbeTimeout(t *testing.T) {
	t.Parallel()

	harness := newPipelineHarness(t)
	harness.prober.err = fmt.Errorf("ffprobe against holiday.MP4: %w", proc.ErrTimeout)

	video, err := harness.pipeline.Ingest(context.Background(), validUpload())
	assert.Nil(t, video)
	assertKind(t, err, ProcessTimeout)
	assert.Zero(t, countFiles(t, harness.storage.base))
}

func Test_Pipeline_Ingest_RollsBackWhenThumbnailingFails(t *testing.T) {
	t.Parallel()

	harness := newPipelineHarness(t)
	harness.thumbs.err = errors.New("ffmpeg exited with status 1")

	video, err := harness.pipeline.Ingest(context.Background(), validUpload())
	assert.Nil(t, video)
	assertKind(t, err, ProcessFailure)

	assert.Contains(t, harness.storage.deleted, harness.storage.AllocateVideoPath())
	assert.Contains(t, harness.storage.deleted, harness.storage.AllocateThumbnailPath())
	assert.Zero(t, countFiles(t, harness.storage.base))
}

func Test_Pipeline_Ingest_RollsBackBothArtifactsWhenPersistenceFails(t *testing.T) {
	t.Parallel()

	harness := newPipelineHarness(t)
	harness.data.err = errors.New("connection reset")

	video, err := harness.pipeline.Ingest(context.Background(), validUpload())
	assert.Nil(t, video)
	assertKind(t, err, PersistenceFailure)

	assert.Contains(t, harness.storage.deleted, harness.storage.AllocateVideoPath())
	assert.Contains(t, harness.storage.deleted, harness.storage.AllocateThumbnailPath())
	assert.Zero(t, countFiles(t, harness.storage.base))
}
