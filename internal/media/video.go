package media

import (
	"fmt"
	"time"
)

type (
	Visibility string

	// Video is the persisted record for a single successfully ingested
	// upload. Storage and thumbnail paths are relative to the storage
	// base directory and unique per record. The aggregate counters are
	// only ever mutated through atomic increment statements.
	Video struct {
		ID               int64      `db:"id"`
		Title            string     `db:"title"`
		Description      string     `db:"description"`
		Keywords         string     `db:"keywords"`
		OriginalFilename string     `db:"original_filename"`
		StoragePath      string     `db:"storage_path"`
		ThumbPath        string     `db:"thumb_path"`
		UploaderID       int64      `db:"uploader_id"`
		SizeBytes        int64      `db:"size_bytes"`
		DurationSeconds  int        `db:"duration_seconds"`
		ViewsTotal       int64      `db:"views_total"`
		DownloadsTotal   int64      `db:"downloads_total"`
		Visibility       Visibility `db:"visibility"`
		CreatedAt        time.Time  `db:"created_at"`
	}
)

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v *Video) String() string {
	return fmt.Sprintf("Video{ID=%d title=%q path=%s}", v.ID, v.Title, v.StoragePath)
}
