// Package app assembles the backend from its configuration.
package app

import (
	"context"
	"estate-chat/auth"
	"estate-chat/errors"
	httpserver "estate-chat/infrastructure/http/server"
	"estate-chat/infrastructure/storage"
	"estate-chat/internal"
	"estate-chat/observability"
	"estate-chat/repositories"
	"estate-chat/runtime"
	"estate-chat/runtime/workers"
	"estate-chat/services"
	"estate-chat/sink"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Log          *slog.Logger
	DB           *badger.DB
	Orchestrator *runtime.Orchestrator
	Registry     *runtime.Registry
	Monitoring   *observability.MonitoringManager
	Server       *httpserver.Server
	Handler      http.Handler
	closers      []func() error
	started      bool
}

type repositorySet struct {
	messages repositories.IMessageRepository
	profiles repositories.IProfileRepository
	users    repositories.IUserRepository
}

// New opens the storage, builds the services and wires the change feed.
// Nothing runs until Start.
func New(ctx context.Context, config internal.Config, log *slog.Logger) (*App, error) {
	a := &App{Log: log}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}

	repos, err := a.openStorage(ctx, config)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		log.Info("Closing Bluge...")
		return blugeWriter.Close()
	})
	searchRepository := repositories.NewSearchRepository(blugeWriter, log)

	moderator, err := runtime.LoadModerator(log, charReplacement)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Registry = runtime.NewRegistry()
	a.Monitoring = observability.NewMonitoringManager(log).WithConnections(a.Registry.CountConnections)
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	a.Orchestrator = runtime.NewOrchestrator(log, supervisor, a.Registry, a.Monitoring,
		config.BufferSize, config.SinkTimeout)
	a.Orchestrator.Add(sink.NewSearchSink(searchRepository, log))
	a.Orchestrator.AddWorkers(workers.NewHeartbeatWorker(log, a.Monitoring, config.MetricInterval))

	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		relay := workers.NewRedisRelay(log, rdb, config.RedisChannel, uuid.NewString(), a.Orchestrator, a.Monitoring)
		a.Orchestrator.Add(relay)
		a.Orchestrator.AddWorkers(relay)
		log.Info("Redis relay enabled", "addr", config.RedisAddr, "channel", config.RedisChannel)
	}

	tokens := auth.NewTokens(config.JwtSecret, config.AuthTokenDuration)
	messageService := services.NewMessageService(log, repos.messages, searchRepository, a.Orchestrator,
		moderator, a.Monitoring, config.MaxContentLength, config.SearchLimit)
	authService := services.NewAuthService(log, repos.users, repos.profiles, tokens)
	profileService := services.NewProfileService(repos.profiles)

	a.Server = httpserver.NewServer(log, authService, messageService, profileService, tokens,
		a.Orchestrator, a.Monitoring, config.ConnectionBufferSize, config.RealtimePingInterval)
	a.Handler = a.Server.Router()
	return a, nil
}

func (a *App) openStorage(ctx context.Context, config internal.Config) (repositorySet, error) {
	switch config.StorageDriver {
	case internal.StoragePostgres:
		pool, err := storage.Open(ctx, config.PostgresDSN, a.Log)
		if err != nil {
			return repositorySet{}, err
		}
		a.closers = append(a.closers, func() error {
			a.Log.Info("Closing Postgres pool...")
			pool.Close()
			return nil
		})
		return repositorySet{
			messages: storage.NewMessageRepository(pool, a.Log, config.LimitMessages),
			profiles: storage.NewProfileRepository(pool),
			users:    storage.NewUserRepository(pool),
		}, nil
	case internal.StorageBadger, "":
		db, err := badger.Open(buildBadgerOpts(ctx, config, a.Log))
		if err != nil {
			return repositorySet{}, fmt.Errorf("database opening failed: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, func() error {
			// Releases the database lock and flushes the buffers
			a.Log.Info("Closing BadgerDB...")
			return db.Close()
		})
		return repositorySet{
			messages: repositories.NewMessageRepository(db, a.Log, config.LimitMessages),
			profiles: repositories.NewProfileRepository(db),
			users:    repositories.NewUserRepository(db),
		}, nil
	default:
		return repositorySet{}, fmt.Errorf("%w: %s", errors.ErrUnknownStorageDriver, config.StorageDriver)
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// Start runs the supervised workers in the background.
func (a *App) Start(ctx context.Context) {
	a.started = true
	a.Orchestrator.Start(ctx)
}

// Stop ends the websocket connections and the workers, storage stays open until Close.
func (a *App) Stop() {
	a.Server.Close()
	if a.started {
		a.Orchestrator.Stop()
		a.started = false
	}
}

// Close releases the storage in reverse opening order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
