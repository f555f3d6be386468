package statistics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/castorhq/castor/internal/stats"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	videoCount int64
	views      int64
	downloads  int64
	totals     []*stats.DailyTotal
	rows       []*stats.DailyStat
	videoDay   *stats.DailyStat
}

func (fake *fakeStore) CountVideos() (int64, error) { return fake.videoCount, nil }

func (fake *fakeStore) LibraryCounts() (int64, int64, error) {
	return fake.views, fake.downloads, nil
}

func (fake *fakeStore) DailyTotals(time.Time, time.Time) ([]*stats.DailyTotal, error) {
	return fake.totals, nil
}

func (fake *fakeStore) DailyStatsBetween(time.Time, time.Time) ([]*stats.DailyStat, error) {
	return fake.rows, nil
}

func (fake *fakeStore) DailyStatFor(int64, time.Time) (*stats.DailyStat, error) {
	if fake.videoDay == nil {
		return nil, stats.ErrStatNotFound
	}
	return fake.videoDay, nil
}

func newStatContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	request := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	return echo.New().NewContext(request, recorder), recorder
}

func httpStatusOf(t *testing.T, err error) int {
	t.Helper()

	var httpError *echo.HTTPError
	require.ErrorAs(t, err, &httpError)
	return httpError.Code
}

func Test_Summary_ReportsLibraryTotals(t *testing.T) {
	t.Parallel()

	controller := New(&fakeStore{videoCount: 3, views: 40, downloads: 9})
	ec, recorder := newStatContext("/")

	require.NoError(t, controller.summary(ec))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"videos":3,"total_views":40,"total_downloads":9}`, recorder.Body.String())
}

func Test_DailyTotals_FormatsDatesAndValidatesRange(t *testing.T) {
	t.Parallel()

	store := &fakeStore{totals: []*stats.DailyTotal{
		{StatDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Views: 5, Downloads: 2},
	}}
	controller := New(store)

	ec, recorder := newStatContext("/?from=2026-08-01&to=2026-08-30")
	require.NoError(t, controller.dailyTotals(ec))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"date":"2026-08-29"`)

	ec, _ = newStatContext("/?from=2026-08-30&to=2026-08-01")
	assert.Equal(t, http.StatusBadRequest, httpStatusOf(t, controller.dailyTotals(ec)))

	ec, _ = newStatContext("/?from=30-08-2026")
	assert.Equal(t, http.StatusBadRequest, httpStatusOf(t, controller.dailyTotals(ec)))
}

func Test_VideoDay_ReturnsRowOrNotFound(t *testing.T) {
	t.Parallel()

	store := &fakeStore{videoDay: &stats.DailyStat{
		VideoID:   4,
		StatDate:  time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		Views:     12,
		Downloads: 3,
	}}
	controller := New(store)

	ec, recorder := newStatContext("/?date=2026-08-29")
	ec.SetParamNames("id")
	ec.SetParamValues("4")
	require.NoError(t, controller.videoDay(ec))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"video_id":4,"date":"2026-08-29","views":12,"downloads":3}`, recorder.Body.String())

	store.videoDay = nil
	ec, _ = newStatContext("/?date=2026-08-29")
	ec.SetParamNames("id")
	ec.SetParamValues("4")
	assert.Equal(t, http.StatusNotFound, httpStatusOf(t, controller.videoDay(ec)))

	ec, _ = newStatContext("/?date=yesterday")
	ec.SetParamNames("id")
	ec.SetParamValues("4")
	assert.Equal(t, http.StatusBadRequest, httpStatusOf(t, controller.videoDay(ec)))

	ec, _ = newStatContext("/")
	ec.SetParamNames("id")
	ec.SetParamValues("four")
	assert.Equal(t, http.StatusBadRequest, httpStatusOf(t, controller.videoDay(ec)))
}
