package videos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/castorhq/castor/internal/ingest"
	"github.com/castorhq/castor/internal/media"
	"github.com/castorhq/castor/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		GetVideo(videoID int64) (*media.Video, error)
		ListVideos(offset int, limit int) ([]*media.Video, error)
		SearchVideos(term string, offset int, limit int) ([]*media.Video, error)
		TopViewedVideos(limit int) ([]*media.Video, error)
		TopDownloadedVideos(limit int) ([]*media.Video, error)
		DeleteVideo(videoID int64) error
	}

	IngestService interface {
		Ingest(ctx context.Context, upload *ingest.Upload) (*media.Video, error)
	}

	StatsService interface {
		RecordView(videoID int64, date time.Time)
		RecordDownload(videoID int64, date time.Time)
	}

	// FileResolver converts the relative artifact paths persisted against
	// a video into absolute paths which can be served.
	FileResolver interface {
		Resolve(relativePath string) (string, error)
	}

	Controller struct {
		validate *validator.Validate
		ingests  IngestService
		stats    StatsService
		files    FileResolver
		store    Store
	}

	uploadRequest struct {
		Title       string `form:"title" validate:"required,max=200"`
		Description string `form:"description" validate:"max=2000"`
		Keywords    string `form:"keywords" validate:"max=500"`
		UploaderID  int64  `form:"uploader_id"`
	}
)

var log = logger.Get("VideosController")

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultTopSize  = 10
)

func New(validate *validator.Validate, ingests IngestService, stats StatsService, files FileResolver, store Store) *Controller {
	return &Controller{validate: validate, ingests: ingests, stats: stats, files: files, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.upload)
	eg.GET("/", controller.list)

	eg.GET("/top/views/", controller.topViews)
	eg.GET("/top/downloads/", controller.topDownloads)

	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)

	eg.GET("/:id/stream/", controller.stream)
	eg.GET("/:id/download/", controller.download)
	eg.GET("/:id/thumbnail/", controller.thumbnail)
}

// upload accepts a multipart form containing the video file and its
// metadata, and runs it through the ingestion pipeline. A failed
// ingestion has already been rolled back by the time it's reported here,
// so the error is simply translated to an appropriate status code.
func (controller *Controller) upload(ec echo.Context) error {
	var request uploadRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Upload form is malformed: %v", err))
	}

	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Upload form is invalid: %v", err))
	}

	header, err := ec.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Upload form is missing a 'file' part")
	}

	file, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Uploaded file could not be opened: %v", err))
	}
	defer file.Close()

	// The pipeline runs under its own per-tool execution bounds; a
	// client disconnect after the form is parsed must not abort probing
	// or thumbnailing mid-flight, so the request context is not threaded
	// through.
	video, err := controller.ingests.Ingest(context.Background(), &ingest.Upload{
		Title:       request.Title,
		Description: request.Description,
		Keywords:    request.Keywords,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
		UploaderID:  request.UploaderID,
	})
	if err != nil {
		return ingestErrorToHTTP(err)
	}

	return ec.JSON(http.StatusCreated, newVideoDto(video))
}

func (controller *Controller) list(ec echo.Context) error {
	params := ec.QueryParams()
	offset, limit := pagination(params.Get("offset"), params.Get("limit"))

	var (
		results []*media.Video
		err     error
	)
	if term := params.Get("search"); term != "" {
		results, err = controller.store.SearchVideos(term, offset, limit)
	} else {
		results, err = controller.store.ListVideos(offset, limit)
	}

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while listing videos: %v", err))
	}

	return ec.JSON(http.StatusOK, newVideoDtos(results))
}

func (controller *Controller) get(ec echo.Context) error {
	video, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, newVideoDto(video))
}

// stream serves the stored video file itself, recording a view against
// the video. Counter failures are swallowed by the stats service and
// never interfere with playback.
func (controller *Controller) stream(ec echo.Context) error {
	video, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	path, err := controller.files.Resolve(video.StoragePath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Video file for %d could not be resolved: %v", video.ID, err))
	}

	controller.stats.RecordView(video.ID, time.Now())
	return ec.File(path)
}

func (controller *Controller) download(ec echo.Context) error {
	video, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	path, err := controller.files.Resolve(video.StoragePath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Video file for %d could not be resolved: %v", video.ID, err))
	}

	controller.stats.RecordDownload(video.ID, time.Now())
	return ec.Attachment(path, video.OriginalFilename)
}

func (controller *Controller) thumbnail(ec echo.Context) error {
	video, err := controller.lookup(ec)
	if err != nil {
		return err
	}

	path, err := controller.files.Resolve(video.ThumbPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Thumbnail for %d could not be resolved: %v", video.ID, err))
	}

	return ec.File(path)
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := videoID(ec)
	if err != nil {
		return err
	}

	if err := controller.store.DeleteVideo(id); err != nil {
		if errors.Is(err, media.ErrVideoNotFound) {
			return echo.ErrNotFound
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete video %d: %v", id, err))
	}

	log.Emit(logger.REMOVE, "Deleted video %d\n", id)
	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) topViews(ec echo.Context) error {
	return controller.top(ec, controller.store.TopViewedVideos)
}

func (controller *Controller) topDownloads(ec echo.Context) error {
	return controller.top(ec, controller.store.TopDownloadedVideos)
}

func (controller *Controller) top(ec echo.Context, fetch func(int) ([]*media.Video, error)) error {
	limit, err := strconv.Atoi(ec.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > maxPageSize {
		limit = defaultTopSize
	}

	results, err := fetch(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while ranking videos: %v", err))
	}

	return ec.JSON(http.StatusOK, newVideoDtos(results))
}

// lookup fetches the video identified by the 'id' path param, mapping a
// missing record to a 404.
func (controller *Controller) lookup(ec echo.Context) (*media.Video, error) {
	id, err := videoID(ec)
	if err != nil {
		return nil, err
	}

	video, err := controller.store.GetVideo(id)
	if err != nil {
		if errors.Is(err, media.ErrVideoNotFound) {
			return nil, echo.ErrNotFound
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch video %d: %v", id, err))
	}

	return video, nil
}

func videoID(ec echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ec.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Video ID must be an integer")
	}

	return id, nil
}

func pagination(rawOffset string, rawLimit string) (int, int) {
	offset, err := strconv.Atoi(rawOffset)
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	return offset, limit
}

// ingestErrorToHTTP maps the pipeline error taxonomy on to response
// status codes; anything unclassified is reported as a plain 500.
func ingestErrorToHTTP(err error) error {
	kind, ok := ingest.KindOf(err)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	switch kind {
	case ingest.ValidationFailure:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case ingest.FormatRejected:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case ingest.ProcessTimeout:
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
