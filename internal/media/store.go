package media

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/castorhq/castor/internal/database"
)

var ErrVideoNotFound = errors.New("video does not exist")

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Save inserts a new video record, populating the ID and created
// timestamp assigned by the database on the provided model.
func (store *Store) Save(db database.Queryable, video *Video) error {
	row := struct {
		ID        int64        `db:"id"`
		CreatedAt sql.NullTime `db:"created_at"`
	}{}

	err := db.Get(&row, `
		INSERT INTO video(title, description, keywords, original_filename, storage_path, thumb_path,
			uploader_id, size_bytes, duration_seconds, views_total, downloads_total, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, $10)
		RETURNING id, created_at
	`, video.Title, video.Description, video.Keywords, video.OriginalFilename,
		video.StoragePath, video.ThumbPath, video.UploaderID, video.SizeBytes,
		video.DurationSeconds, video.Visibility)
	if err != nil {
		return fmt.Errorf("failed to insert video record: %w", err)
	}

	video.ID = row.ID
	video.CreatedAt = row.CreatedAt.Time
	return nil
}

func (store *Store) Get(db database.Queryable, videoID int64) (*Video, error) {
	var result Video
	if err := db.Get(&result, `SELECT * FROM video WHERE id=$1`, videoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVideoNotFound
		}

		return nil, err
	}

	return &result, nil
}

// List returns a page of videos ordered newest-first.
func (store *Store) List(db database.Queryable, offset int, limit int) ([]*Video, error) {
	builder := selectVideoBuilder().
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit))

	return store.selectVideos(db, builder)
}

// Search returns a page of videos whose title or keywords contain the
// given term (case-insensitive), ordered newest-first.
func (store *Store) Search(db database.Queryable, term string, offset int, limit int) ([]*Video, error) {
	pattern := "%" + term + "%"
	builder := selectVideoBuilder().
		Where(squirrel.Or{
			squirrel.Expr("LOWER(title) LIKE LOWER(?)", pattern),
			squirrel.Expr("LOWER(keywords) LIKE LOWER(?)", pattern),
		}).
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit))

	return store.selectVideos(db, builder)
}

func (store *Store) TopViewed(db database.Queryable, limit int) ([]*Video, error) {
	return store.selectVideos(db, selectVideoBuilder().OrderBy("views_total DESC").Limit(uint64(limit)))
}

func (store *Store) TopDownloaded(db database.Queryable, limit int) ([]*Video, error) {
	return store.selectVideos(db, selectVideoBuilder().OrderBy("downloads_total DESC").Limit(uint64(limit)))
}

func (store *Store) Count(db database.Queryable) (int64, error) {
	var count int64
	if err := db.Get(&count, `SELECT COUNT(*) FROM video`); err != nil {
		return 0, err
	}

	return count, nil
}

// TotalCounts returns the sum of all aggregate view and download
// counters across every video.
func (store *Store) TotalCounts(db database.Queryable) (views int64, downloads int64, err error) {
	totals := struct {
		Views     int64 `db:"views"`
		Downloads int64 `db:"downloads"`
	}{}

	if err := db.Get(&totals, `
		SELECT COALESCE(SUM(views_total), 0) AS views, COALESCE(SUM(downloads_total), 0) AS downloads
		FROM video
	`); err != nil {
		return 0, 0, err
	}

	return totals.Views, totals.Downloads, nil
}

func (store *Store) Delete(db database.Queryable, videoID int64) error {
	result, err := db.Exec(`DELETE FROM video WHERE id=$1`, videoID)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrVideoNotFound
	}

	return nil
}

// IncrementViews atomically bumps the aggregate view counter for the
// video. The increment happens inside the UPDATE statement itself so
// concurrent callers can never lose updates. Returns false when no such
// video exists.
func (store *Store) IncrementViews(db database.Queryable, videoID int64) (bool, error) {
	result, err := db.Exec(`UPDATE video SET views_total = views_total + 1 WHERE id=$1`, videoID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// IncrementDownloads atomically bumps the aggregate download counter
// for the video. Returns false when no such video exists.
func (store *Store) IncrementDownloads(db database.Queryable, videoID int64) (bool, error) {
	result, err := db.Exec(`UPDATE video SET downloads_total = downloads_total + 1 WHERE id=$1`, videoID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (store *Store) selectVideos(db database.Queryable, builder squirrel.SelectBuilder) ([]*Video, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct video query: %w", err)
	}

	var results []*Video
	if err := db.Select(&results, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return results, nil
}

func selectVideoBuilder() squirrel.SelectBuilder {
	return squirrel.Select("*").From("video")
}
