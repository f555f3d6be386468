// Package storage owns the on-disk layout for media artifacts. Videos and
// thumbnails live in separate subtrees under a single base directory,
// partitioned by date with random filename components:
//
//	<base>/videos/YYYY/MM/DD/<uuid>.mp4
//	<base>/thumbs/YYYY/MM/DD/<uuid>.jpg
//
// All paths handed out and accepted by the allocator are relative to the
// base directory; only Resolve produces absolute paths.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castorhq/castor/pkg/logger"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
)

var log = logger.Get("Storage")

// ErrPathEscapesBase is returned by Resolve when a relative path would
// traverse outside of the configured base directory.
var ErrPathEscapesBase = errors.New("path escapes the storage base directory")

const (
	videoSubtree = "videos"
	thumbSubtree = "thumbs"

	videoExtension = ".mp4"
	thumbExtension = ".jpg"

	datePartitionLayout = "2006/01/02"
)

type (
	Config struct {
		BaseDir string `yaml:"base_dir" env:"STORAGE_BASE_DIR" env-default:"./data"`
	}

	Allocator struct {
		baseDir string
	}
)

// New constructs an allocator rooted at the configured base directory,
// expanding a leading '~' and normalising to an absolute path.
func New(config Config) (*Allocator, error) {
	expanded, err := homedir.Expand(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand storage base dir %s: %w", config.BaseDir, err)
	}

	baseDir, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage base dir %s: %w", expanded, err)
	}

	return &Allocator{baseDir: baseDir}, nil
}

// Initialize creates the base directory and both artifact subtrees. Safe
// to call repeatedly.
func (allocator *Allocator) Initialize() error {
	for _, subtree := range []string{videoSubtree, thumbSubtree} {
		if err := os.MkdirAll(filepath.Join(allocator.baseDir, subtree), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create storage subtree %s: %w", subtree, err)
		}
	}

	log.Emit(logger.INFO, "Storage directories initialized under %s\n", allocator.baseDir)
	return nil
}

// AllocateVideoPath generates a fresh, date-partitioned relative path for
// a video artifact. The 128-bit random filename component makes
// collisions negligible; no reservation is performed.
func (allocator *Allocator) AllocateVideoPath() string {
	return allocator.allocate(videoSubtree, videoExtension)
}

// AllocateThumbnailPath generates a fresh, date-partitioned relative path
// for a thumbnail artifact.
func (allocator *Allocator) AllocateThumbnailPath() string {
	return allocator.allocate(thumbSubtree, thumbExtension)
}

func (allocator *Allocator) allocate(subtree string, extension string) string {
	datePartition := time.Now().Format(datePartitionLayout)
	return filepath.Join(subtree, datePartition, uuid.NewString()+extension)
}

// Resolve joins the relative path against the base directory, rejecting
// any path which would escape it.
func (allocator *Allocator) Resolve(relativePath string) (string, error) {
	resolved := filepath.Join(allocator.baseDir, relativePath)

	relative, err := filepath.Rel(allocator.baseDir, resolved)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cannot resolve %s: %w", relativePath, ErrPathEscapesBase)
	}

	return resolved, nil
}

// EnsureParent idempotently creates all parent directories needed to
// write the given relative path.
func (allocator *Allocator) EnsureParent(relativePath string) error {
	resolved, err := allocator.Resolve(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", relativePath, err)
	}

	return nil
}

// Delete removes the file at the relative path on a best-effort basis.
// A missing target is not an error, and failures are logged rather than
// returned: deletion runs during rollback and must never mask the
// failure that triggered it.
func (allocator *Allocator) Delete(relativePath string) {
	resolved, err := allocator.Resolve(relativePath)
	if err != nil {
		log.Emit(logger.WARNING, "Refusing to delete %s: %s\n", relativePath, err.Error())
		return
	}

	if err := os.Remove(resolved); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Emit(logger.WARNING, "Failed to delete %s: %s\n", relativePath, err.Error())
		}
		return
	}

	log.Emit(logger.REMOVE, "Deleted file %s\n", relativePath)
}

// Exists reports whether a file is present at the relative path.
func (allocator *Allocator) Exists(relativePath string) bool {
	resolved, err := allocator.Resolve(relativePath)
	if err != nil {
		return false
	}

	_, err = os.Stat(resolved)
	return err == nil
}

// FileSize returns the size in bytes of the file at the relative path.
func (allocator *Allocator) FileSize(relativePath string) (int64, error) {
	resolved, err := allocator.Resolve(relativePath)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// BaseDir exposes the absolute base directory, primarily for logging.
func (allocator *Allocator) BaseDir() string {
	return allocator.baseDir
}
