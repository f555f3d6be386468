package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castorhq/castor/internal/database"
)

var ErrStatNotFound = errors.New("no daily stat row exists")

type (
	// DailyStat is one rollup row per (video, calendar date). Rows are
	// created lazily by the first event of a day and only ever mutated
	// through upsert-increments.
	DailyStat struct {
		ID        int64     `db:"id"`
		VideoID   int64     `db:"video_id"`
		StatDate  time.Time `db:"stat_date"`
		Views     int       `db:"views"`
		Downloads int       `db:"downloads"`
	}

	// DailyTotal aggregates all videos' counters for a single date.
	DailyTotal struct {
		StatDate  time.Time `db:"stat_date"`
		Views     int64     `db:"views"`
		Downloads int64     `db:"downloads"`
	}

	Store struct{}
)

func NewStore() *Store {
	return &Store{}
}

// UpsertView inserts the daily row for (videoID, date) with one view, or
// increments the existing row. The insert-or-increment is a single atomic
// statement so concurrent first-events for the same day cannot race: one
// insert wins and the rest degrade to increments.
func (store *Store) UpsertView(db database.Queryable, videoID int64, date time.Time) error {
	_, err := db.Exec(`
		INSERT INTO video_daily_stats(video_id, stat_date, views, downloads)
		VALUES ($1, $2::date, 1, 0)
		ON CONFLICT (video_id, stat_date) DO UPDATE SET views = video_daily_stats.views + 1
	`, videoID, date)
	if err != nil {
		return fmt.Errorf("failed to upsert view stat for video %d: %w", videoID, err)
	}

	return nil
}

// UpsertDownload inserts the daily row for (videoID, date) with one
// download, or increments the existing row.
func (store *Store) UpsertDownload(db database.Queryable, videoID int64, date time.Time) error {
	_, err := db.Exec(`
		INSERT INTO video_daily_stats(video_id, stat_date, views, downloads)
		VALUES ($1, $2::date, 0, 1)
		ON CONFLICT (video_id, stat_date) DO UPDATE SET downloads = video_daily_stats.downloads + 1
	`, videoID, date)
	if err != nil {
		return fmt.Errorf("failed to upsert download stat for video %d: %w", videoID, err)
	}

	return nil
}

// Get returns the daily stat row for the given video and date.
func (store *Store) Get(db database.Queryable, videoID int64, date time.Time) (*DailyStat, error) {
	var result DailyStat
	err := db.Get(&result, `SELECT * FROM video_daily_stats WHERE video_id=$1 AND stat_date=$2::date`, videoID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatNotFound
		}

		return nil, err
	}

	return &result, nil
}

// Between returns all daily stat rows in the inclusive date range,
// ordered by date.
func (store *Store) Between(db database.Queryable, from time.Time, to time.Time) ([]*DailyStat, error) {
	var results []*DailyStat
	err := db.Select(&results, `
		SELECT * FROM video_daily_stats
		WHERE stat_date BETWEEN $1::date AND $2::date
		ORDER BY stat_date
	`, from, to)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// DailyTotals aggregates views and downloads across all videos for each
// date in the inclusive range.
func (store *Store) DailyTotals(db database.Queryable, from time.Time, to time.Time) ([]*DailyTotal, error) {
	var results []*DailyTotal
	err := db.Select(&results, `
		SELECT stat_date, SUM(views) AS views, SUM(downloads) AS downloads
		FROM video_daily_stats
		WHERE stat_date BETWEEN $1::date AND $2::date
		GROUP BY stat_date
		ORDER BY stat_date
	`, from, to)
	if err != nil {
		return nil, err
	}

	return results, nil
}
