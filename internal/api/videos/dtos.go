package videos

import (
	"fmt"
	"time"

	"github.com/castorhq/castor/internal/media"
)

type videoDto struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Keywords         []string  `json:"keywords"`
	OriginalFilename string    `json:"original_filename"`
	UploaderID       int64     `json:"uploader_id"`
	SizeBytes        int64     `json:"size_bytes"`
	DurationSeconds  int       `json:"duration_seconds"`
	Views            int64     `json:"views"`
	Downloads        int64     `json:"downloads"`
	Visibility       string    `json:"visibility"`
	CreatedAt        time.Time `json:"created_at"`
	StreamURL        string    `json:"stream_url"`
	DownloadURL      string    `json:"download_url"`
	ThumbnailURL     string    `json:"thumbnail_url"`
}

func newVideoDto(video *media.Video) videoDto {
	return videoDto{
		ID:               video.ID,
		Title:            video.Title,
		Description:      video.Description,
		Keywords:         media.ParseKeywords(video.Keywords),
		OriginalFilename: video.OriginalFilename,
		UploaderID:       video.UploaderID,
		SizeBytes:        video.SizeBytes,
		DurationSeconds:  video.DurationSeconds,
		Views:            video.ViewsTotal,
		Downloads:        video.DownloadsTotal,
		Visibility:       string(video.Visibility),
		CreatedAt:        video.CreatedAt,
		StreamURL:        fmt.Sprintf("/api/castor/v1/videos/%d/stream/", video.ID),
		DownloadURL:      fmt.Sprintf("/api/castor/v1/videos/%d/download/", video.ID),
		ThumbnailURL:     fmt.Sprintf("/api/castor/v1/videos/%d/thumbnail/", video.ID),
	}
}

func newVideoDtos(results []*media.Video) []videoDto {
	dtos := make([]videoDto, len(results))
	for k, v := range results {
		dtos[k] = newVideoDto(v)
	}

	return dtos
}
