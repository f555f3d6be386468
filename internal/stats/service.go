package stats

import (
	"time"

	"github.com/castorhq/castor/internal/database"
	"github.com/castorhq/castor/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var log = logger.Get("Counters")

type (
	// aggregateStore is the subset of the video store needed to bump the
	// per-record counters.
	aggregateStore interface {
		IncrementViews(db database.Queryable, videoID int64) (bool, error)
		IncrementDownloads(db database.Queryable, videoID int64) (bool, error)
	}

	dailyStore interface {
		UpsertView(db database.Queryable, videoID int64, date time.Time) error
		UpsertDownload(db database.Queryable, videoID int64, date time.Time) error
	}

	txRunner interface {
		WrapTx(func(*sqlx.Tx) error) error
	}

	// Service records view/download events. Each event performs the
	// aggregate counter increment and the per-day rollup upsert as one
	// transaction; if the video does not exist the rollup is skipped so
	// no orphan daily rows appear.
	//
	// Recording failures are logged, never returned: the serving path
	// that triggered the event must succeed regardless.
	Service struct {
		db     txRunner
		videos aggregateStore
		daily  dailyStore
	}
)

func NewService(db txRunner, videos aggregateStore, daily dailyStore) *Service {
	return &Service{db: db, videos: videos, daily: daily}
}

func (service *Service) RecordView(videoID int64, date time.Time) {
	err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		incremented, err := service.videos.IncrementViews(tx, videoID)
		if err != nil {
			return err
		}
		if !incremented {
			log.Emit(logger.DEBUG, "Skipping daily view stat for non-existent video %d\n", videoID)
			return nil
		}

		return service.daily.UpsertView(tx, videoID, date)
	})
	if err != nil {
		log.Emit(logger.ERROR, "Failed to record view for video %d: %s\n", videoID, err.Error())
	}
}

func (service *Service) RecordDownload(videoID int64, date time.Time) {
	err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		incremented, err := service.videos.IncrementDownloads(tx, videoID)
		if err != nil {
			return err
		}
		if !incremented {
			log.Emit(logger.DEBUG, "Skipping daily download stat for non-existent video %d\n", videoID)
			return nil
		}

		return service.daily.UpsertDownload(tx, videoID, date)
	})
	if err != nil {
		log.Emit(logger.ERROR, "Failed to record download for video %d: %s\n", videoID, err.Error())
	}
}
