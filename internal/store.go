package internal

import (
	"time"

	"github.com/castorhq/castor/internal/database"
	"github.com/castorhq/castor/internal/media"
	"github.com/castorhq/castor/internal/stats"
	"github.com/jmoiron/sqlx"
)

type (
	// artifactRemover is the slice of the storage allocator the
	// orchestrator needs to clean up a deleted video's files.
	artifactRemover interface {
		Delete(relativePath string)
	}

	// dataOrchestrator is responsible for managing all of Castor's
	// persisted resources. You can think of all the data stores below
	// this layer as being 'dumb', and this store linking them together
	// and providing the database connection.
	//
	// If consumers need to be able to access data stores directly,
	// they're welcome to do so - however caution should be taken as
	// stores have no obligation to take care of relational data (which
	// is the orchestrator's job).
	dataOrchestrator struct {
		db         database.Manager
		artifacts  artifactRemover
		MediaStore *media.Store
		StatsStore *stats.Store
	}
)

func newDataOrchestrator(db database.Manager, artifacts artifactRemover) *dataOrchestrator {
	return &dataOrchestrator{
		db:         db,
		artifacts:  artifacts,
		MediaStore: media.NewStore(),
		StatsStore: stats.NewStore(),
	}
}

// Videos

func (data *dataOrchestrator) SaveVideo(video *media.Video) error {
	return data.MediaStore.Save(data.db.GetSqlxDb(), video)
}

func (data *dataOrchestrator) GetVideo(videoID int64) (*media.Video, error) {
	return data.MediaStore.Get(data.db.GetSqlxDb(), videoID)
}

func (data *dataOrchestrator) ListVideos(offset int, limit int) ([]*media.Video, error) {
	return data.MediaStore.List(data.db.GetSqlxDb(), offset, limit)
}

func (data *dataOrchestrator) SearchVideos(term string, offset int, limit int) ([]*media.Video, error) {
	return data.MediaStore.Search(data.db.GetSqlxDb(), term, offset, limit)
}

func (data *dataOrchestrator) TopViewedVideos(limit int) ([]*media.Video, error) {
	return data.MediaStore.TopViewed(data.db.GetSqlxDb(), limit)
}

func (data *dataOrchestrator) TopDownloadedVideos(limit int) ([]*media.Video, error) {
	return data.MediaStore.TopDownloaded(data.db.GetSqlxDb(), limit)
}

// DeleteVideo transactionally removes the video row (the daily stat rows
// follow via the FK cascade), then removes the stored artifacts from
// disk. File removal happens after the transaction commits so a rolled
// back delete never loses data, and is best-effort thereafter.
func (data *dataOrchestrator) DeleteVideo(videoID int64) error {
	var video *media.Video
	if err := data.db.WrapTx(func(tx *sqlx.Tx) error {
		found, err := data.MediaStore.Get(tx, videoID)
		if err != nil {
			return err
		}

		if err := data.MediaStore.Delete(tx, videoID); err != nil {
			return err
		}

		video = found
		return nil
	}); err != nil {
		return err
	}

	data.artifacts.Delete(video.StoragePath)
	data.artifacts.Delete(video.ThumbPath)
	return nil
}

func (data *dataOrchestrator) CountVideos() (int64, error) {
	return data.MediaStore.Count(data.db.GetSqlxDb())
}

func (data *dataOrchestrator) LibraryCounts() (views int64, downloads int64, err error) {
	return data.MediaStore.TotalCounts(data.db.GetSqlxDb())
}

// Daily stats

func (data *dataOrchestrator) DailyTotals(from time.Time, to time.Time) ([]*stats.DailyTotal, error) {
	return data.StatsStore.DailyTotals(data.db.GetSqlxDb(), from, to)
}

func (data *dataOrchestrator) DailyStatsBetween(from time.Time, to time.Time) ([]*stats.DailyStat, error) {
	return data.StatsStore.Between(data.db.GetSqlxDb(), from, to)
}

func (data *dataOrchestrator) DailyStatFor(videoID int64, date time.Time) (*stats.DailyStat, error) {
	return data.StatsStore.Get(data.db.GetSqlxDb(), videoID, date)
}
