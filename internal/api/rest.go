package api

import (
	"context"
	"sync"

	"github.com/castorhq/castor/internal/api/statistics"
	"github.com/castorhq/castor/internal/api/videos"
	"github.com/castorhq/castor/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore represents a union of all the controller store requirements
	dataStore interface {
		videos.Store
		statistics.Store
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its
	// sole responsibility is to create the routes Castor exposes and hand
	// requests off to the domain controllers.
	RestGateway struct {
		config          *RestConfig
		ec              *echo.Echo
		videoController controller
		statsController controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Each controller requires
// access to a data store and the domain services it fronts, which are
// provided as arguments.
func NewRestGateway(
	config *RestConfig,
	ingestService videos.IngestService,
	statsService videos.StatsService,
	files videos.FileResolver,
	store dataStore,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	gateway := &RestGateway{
		config:          config,
		ec:              ec,
		videoController: videos.New(validate, ingestService, statsService, files, store),
		statsController: statistics.New(store),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	videoRoutes := ec.Group("/api/castor/v1/videos")
	gateway.videoController.SetRoutes(videoRoutes)

	statRoutes := ec.Group("/api/castor/v1/statistics")
	gateway.statsController.SetRoutes(statRoutes)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
