package statistics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/castorhq/castor/internal/stats"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		CountVideos() (int64, error)
		LibraryCounts() (views int64, downloads int64, err error)
		DailyTotals(from time.Time, to time.Time) ([]*stats.DailyTotal, error)
		DailyStatsBetween(from time.Time, to time.Time) ([]*stats.DailyStat, error)
		DailyStatFor(videoID int64, date time.Time) (*stats.DailyStat, error)
	}

	Controller struct {
		store Store
	}

	summaryDto struct {
		Videos         int64 `json:"videos"`
		TotalViews     int64 `json:"total_views"`
		TotalDownloads int64 `json:"total_downloads"`
	}

	dailyTotalDto struct {
		Date      string `json:"date"`
		Views     int64  `json:"views"`
		Downloads int64  `json:"downloads"`
	}

	dailyStatDto struct {
		VideoID   int64  `json:"video_id"`
		Date      string `json:"date"`
		Views     int    `json:"views"`
		Downloads int    `json:"downloads"`
	}
)

const (
	dateParamLayout  = "2006-01-02"
	defaultRangeDays = 30
)

func New(store Store) *Controller {
	return &Controller{store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/summary/", controller.summary)
	eg.GET("/daily/", controller.dailyTotals)
	eg.GET("/daily/videos/", controller.dailyPerVideo)
	eg.GET("/videos/:id/", controller.videoDay)
}

// summary reports the library-wide aggregate counters.
func (controller *Controller) summary(ec echo.Context) error {
	videos, err := controller.store.CountVideos()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to count videos: %v", err))
	}

	views, downloads, err := controller.store.LibraryCounts()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to total library counters: %v", err))
	}

	return ec.JSON(http.StatusOK, summaryDto{Videos: videos, TotalViews: views, TotalDownloads: downloads})
}

// dailyTotals returns one row per calendar date in the requested range,
// aggregated across every video.
func (controller *Controller) dailyTotals(ec echo.Context) error {
	from, to, err := dateRange(ec)
	if err != nil {
		return err
	}

	totals, err := controller.store.DailyTotals(from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch daily totals: %v", err))
	}

	dtos := make([]dailyTotalDto, len(totals))
	for k, v := range totals {
		dtos[k] = dailyTotalDto{Date: v.StatDate.Format(dateParamLayout), Views: v.Views, Downloads: v.Downloads}
	}

	return ec.JSON(http.StatusOK, dtos)
}

// dailyPerVideo returns the raw per-video rollup rows for the range.
func (controller *Controller) dailyPerVideo(ec echo.Context) error {
	from, to, err := dateRange(ec)
	if err != nil {
		return err
	}

	rows, err := controller.store.DailyStatsBetween(from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch daily stats: %v", err))
	}

	dtos := make([]dailyStatDto, len(rows))
	for k, v := range rows {
		dtos[k] = dailyStatDto{VideoID: v.VideoID, Date: v.StatDate.Format(dateParamLayout), Views: v.Views, Downloads: v.Downloads}
	}

	return ec.JSON(http.StatusOK, dtos)
}

// videoDay returns the rollup row for one video on one date (the 'date'
// query param, defaulting to today). A day with no recorded events has
// no row and reports 404.
func (controller *Controller) videoDay(ec echo.Context) error {
	videoID, err := strconv.ParseInt(ec.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Video ID must be an integer")
	}

	date := time.Now()
	if raw := ec.QueryParam("date"); raw != "" {
		parsed, err := time.Parse(dateParamLayout, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Query param 'date' must be formatted as YYYY-MM-DD")
		}
		date = parsed
	}

	row, err := controller.store.DailyStatFor(videoID, date)
	if err != nil {
		if errors.Is(err, stats.ErrStatNotFound) {
			return echo.ErrNotFound
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch daily stat for video %d: %v", videoID, err))
	}

	return ec.JSON(http.StatusOK, dailyStatDto{VideoID: row.VideoID, Date: row.StatDate.Format(dateParamLayout), Views: row.Views, Downloads: row.Downloads})
}

// dateRange parses the optional 'from'/'to' query params (YYYY-MM-DD),
// defaulting to the trailing thirty days ending today.
func dateRange(ec echo.Context) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -defaultRangeDays)

	if raw := ec.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(dateParamLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "Query param 'from' must be formatted as YYYY-MM-DD")
		}
		from = parsed
	}

	if raw := ec.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(dateParamLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "Query param 'to' must be formatted as YYYY-MM-DD")
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "Query param 'to' must not precede 'from'")
	}

	return from, to, nil
}
