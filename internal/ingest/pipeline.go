// Package ingest implements the upload ingestion pipeline: validation,
// staging to disk, media probing, thumbnail generation, and transactional
// persistence, with synchronous rollback of this invocation's artifacts
// on any failure.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/castorhq/castor/internal/media"
	"github.com/castorhq/castor/internal/probe"
	"github.com/castorhq/castor/pkg/logger"
)

var log = logger.Get("Ingest")

type (
	prober interface {
		Probe(ctx context.Context, path string) (*probe.Result, error)
	}

	thumbnailer interface {
		Generate(ctx context.Context, videoPath string, outputPath string, durationSeconds int) error
	}

	allocator interface {
		AllocateVideoPath() string
		AllocateThumbnailPath() string
		Resolve(relativePath string) (string, error)
		EnsureParent(relativePath string) error
		Delete(relativePath string)
	}

	dataStore interface {
		SaveVideo(video *media.Video) error
	}

	// Upload carries everything the pipeline needs to know about an
	// incoming file. Content is consumed exactly once.
	Upload struct {
		Title       string
		Description string
		Keywords    string
		Filename    string
		ContentType string
		Size        int64
		Content     io.Reader
		UploaderID  int64
	}

	Pipeline struct {
		config      Config
		prober      prober
		thumbnailer thumbnailer
		storage     allocator
		data        dataStore
	}

	// operation tracks the state and artifacts of a single ingestion.
	// Only paths recorded here are eligible for rollback deletion, so an
	// aborted ingestion can never touch another record's files.
	operation struct {
		state     State
		videoPath string
		thumbPath string
		sizeBytes int64
		artifacts []string
	}
)

func New(config Config, prober prober, thumbnailer thumbnailer, storage allocator, data dataStore) *Pipeline {
	return &Pipeline{
		config:      config,
		prober:      prober,
		thumbnailer: thumbnailer,
		storage:     storage,
		data:        data,
	}
}

// Ingest drives an upload through the full pipeline and returns the
// persisted video record, or a *PipelineError describing which stage
// failed. By the time an error is returned, every artifact this
// invocation wrote has been (best-effort) deleted.
func (pipeline *Pipeline) Ingest(ctx context.Context, upload *Upload) (*media.Video, error) {
	op := &operation{state: Received}
	log.Emit(logger.NEW, "Beginning ingestion of %q (%d bytes) for uploader %d\n",
		upload.Filename, upload.Size, upload.UploaderID)

	// Received -> Validated. Rejection here has no side effects as
	// nothing has been written yet.
	if err := pipeline.validate(upload); err != nil {
		op.state = RolledBack
		return nil, NewError(ValidationFailure, err)
	}
	op.transition(Validated)

	// Validated -> Stored
	op.videoPath = pipeline.storage.AllocateVideoPath()
	op.thumbPath = pipeline.storage.AllocateThumbnailPath()

	absVideoPath, err := pipeline.stageUpload(op, upload)
	if err != nil {
		return nil, pipeline.rollback(op, StorageFailure, err)
	}
	op.transition(Stored)

	// Stored -> Probed
	probeResult, err := pipeline.prober.Probe(ctx, absVideoPath)
	if err != nil {
		return nil, pipeline.rollback(op, classifyToolError(err), err)
	}
	if !probeResult.ValidFormat {
		return nil, pipeline.rollback(op, FormatRejected, fmt.Errorf(
			"upload %q rejected: requires an h264 video stream (present: %v) and an aac audio stream (present: %v)",
			upload.Filename, probeResult.VideoCodecCompliant, probeResult.AudioCodecCompliant))
	}
	op.transition(Probed)

	// Probed -> Thumbnailed
	absThumbPath, err := pipeline.storage.Resolve(op.thumbPath)
	if err != nil {
		return nil, pipeline.rollback(op, StorageFailure, err)
	}

	// Record the thumbnail as an artifact before generation so a partial
	// write is still cleaned up; deleting a never-written path is a no-op.
	op.addArtifact(op.thumbPath)
	if err := pipeline.thumbnailer.Generate(ctx, absVideoPath, absThumbPath, probeResult.DurationSeconds); err != nil {
		return nil, pipeline.rollback(op, classifyToolError(err), err)
	}
	op.transition(Thumbnailed)

	// Thumbnailed -> Committed
	video := &media.Video{
		Title:            strings.TrimSpace(upload.Title),
		Description:      upload.Description,
		Keywords:         media.NormalizeKeywords(upload.Keywords),
		OriginalFilename: upload.Filename,
		StoragePath:      op.videoPath,
		ThumbPath:        op.thumbPath,
		UploaderID:       upload.UploaderID,
		SizeBytes:        op.sizeBytes,
		DurationSeconds:  probeResult.DurationSeconds,
		Visibility:       media.VisibilityPublic,
	}
	if err := pipeline.data.SaveVideo(video); err != nil {
		return nil, pipeline.rollback(op, PersistenceFailure, err)
	}
	op.transition(Committed)

	log.Emit(logger.SUCCESS, "Ingested %v (duration %ds, stored at %s)\n",
		video, video.DurationSeconds, video.StoragePath)
	return video, nil
}

// validate enforces the upload acceptance policy: non-empty, within the
// size bound, an '.mp4' filename and a video/* content type.
func (pipeline *Pipeline) validate(upload *Upload) error {
	if upload.Content == nil || upload.Size == 0 {
		return errors.New("no video file was provided")
	}

	if upload.Size > pipeline.config.MaxUploadSizeBytes {
		return fmt.Errorf("upload of %d bytes exceeds the maximum of %d bytes",
			upload.Size, pipeline.config.MaxUploadSizeBytes)
	}

	if !strings.HasSuffix(strings.ToLower(upload.Filename), ".mp4") {
		return fmt.Errorf("filename %q is not an .mp4 file", upload.Filename)
	}

	if !strings.HasPrefix(upload.ContentType, "video/") {
		return fmt.Errorf("content type %q is not a video type", upload.ContentType)
	}

	return nil
}

// stageUpload copies the uploaded bytes to the allocated video path,
// creating the date-partition directories for both artifacts first. The
// destination file is recorded as an artifact before the copy begins so
// that a failed copy is still rolled back.
func (pipeline *Pipeline) stageUpload(op *operation, upload *Upload) (string, error) {
	if err := pipeline.storage.EnsureParent(op.videoPath); err != nil {
		return "", err
	}
	if err := pipeline.storage.EnsureParent(op.thumbPath); err != nil {
		return "", err
	}

	absVideoPath, err := pipeline.storage.Resolve(op.videoPath)
	if err != nil {
		return "", err
	}

	destination, err := os.Create(absVideoPath)
	if err != nil {
		return "", fmt.Errorf("failed to create video file %s: %w", op.videoPath, err)
	}
	defer destination.Close()

	op.addArtifact(op.videoPath)
	written, err := io.Copy(destination, upload.Content)
	if err != nil {
		return "", fmt.Errorf("failed to write video file %s: %w", op.videoPath, err)
	}

	op.sizeBytes = written
	return absVideoPath, nil
}

// rollback synchronously deletes every artifact recorded on the
// operation and wraps the causing error in the pipeline taxonomy.
// Deletion failures are logged by the allocator and never change the
// reported error kind.
func (pipeline *Pipeline) rollback(op *operation, kind ErrorKind, cause error) error {
	log.Emit(logger.WARNING, "Rolling back ingestion from %s (%s): %s\n", op.state, kind, cause.Error())

	op.state = RolledBack
	for i := len(op.artifacts) - 1; i >= 0; i-- {
		pipeline.storage.Delete(op.artifacts[i])
	}

	return NewError(kind, cause)
}

func (op *operation) transition(next State) {
	log.Emit(logger.DEBUG, "Ingestion transition %s -> %s\n", op.state, next)
	op.state = next
}

func (op *operation) addArtifact(relativePath string) {
	op.artifacts = append(op.artifacts, relativePath)
}
