package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/castorhq/castor/internal/api"
	"github.com/castorhq/castor/internal/database"
	"github.com/castorhq/castor/internal/ingest"
	"github.com/castorhq/castor/internal/probe"
	"github.com/castorhq/castor/internal/stats"
	"github.com/castorhq/castor/internal/storage"
	"github.com/castorhq/castor/internal/thumbnail"
	"github.com/castorhq/castor/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}
)

// Castor represents the top-level object for the server, and is
// responsible for initialising the storage layer, database connection,
// stores, services and the REST gateway.
type castorImpl struct {
	config CastorConfig

	storage *storage.Allocator
	data    *dataOrchestrator

	pipeline     *ingest.Pipeline
	statsService *stats.Service
	restGateway  RunnableService
}

func New(config CastorConfig) *castorImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Castor services using config: %#v\n", config)
	return &castorImpl{config: config}
}

// Run will start all of Castor by bringing up all required services and
// connections, such as:
// - Storage directories
// - Database connection (and migrations)
// - Service instances
// - REST gateway
//
// This function will not return until Castor is stopped. To stop Castor,
// the provided context must be cancelled. Errors from which Castor
// cannot recover will also cause Castor to stop.
func (castor *castorImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Initialising storage directories...\n")
	allocator, err := storage.New(castor.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialise storage: %w", err)
	}
	if err := allocator.Initialize(); err != nil {
		return fmt.Errorf("failed to initialise storage: %w", err)
	}
	castor.storage = allocator

	log.Emit(logger.NEW, "Connecting to database...\n")
	db := database.New()
	if err := db.Connect(castor.config.Database); err != nil {
		return err
	}

	castor.data = newDataOrchestrator(db, castor.storage)
	castor.statsService = stats.NewService(db, castor.data.MediaStore, castor.data.StatsStore)
	castor.pipeline = ingest.New(
		castor.config.Ingest,
		probe.New(castor.config.Probe),
		thumbnail.New(castor.config.Thumbnail),
		castor.storage,
		castor.data,
	)
	castor.restGateway = api.NewRestGateway(
		&castor.config.RestConfig,
		castor.pipeline,
		castor.statsService,
		castor.storage,
		castor.data,
	)

	wg := &sync.WaitGroup{}
	castor.spawnAsyncService(ctx, wg, castor.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Castor services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as its own
// go-routine, ensuring that the Castor service waitgroup is updated correctly
func (castor *castorImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
