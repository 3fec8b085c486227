package injector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	"github.com/zeusync/behaviour/internal/config"
	"github.com/zeusync/behaviour/internal/core/behaviour"
	"github.com/zeusync/behaviour/internal/core/controller"
	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/core/storage"
	"github.com/zeusync/behaviour/internal/server"
)

// App is everything cmd/npcsim needs to run a simulation.
type App struct {
	Config   *config.Config
	Logger   log.Log
	Events   bus.EventBus
	Registry behaviour.Registry
	Store    storage.SnapshotStore
	Manager  *controller.Manager
	Stream   *server.EventStream
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	behaviour.NewDefaultRegistry,
	ProvideStore,
	ProvideManager,
	ProvideEventStream,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

// ProvideStore opens the snapshot store selected by storage.mode. The cleanup
// closes it.
func ProvideStore(cfg *config.Config, logger log.Log) (storage.SnapshotStore, func(), error) {
	var store storage.SnapshotStore
	switch cfg.Storage.Mode {
	case "redis":
		rs, err := storage.NewRedisStore(cfg.Storage.RedisURL, cfg.Storage.SnapshotTTL, logger)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err = rs.WaitForConnection(ctx, 5, time.Second); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		store = rs
	case "memory":
		store = storage.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown storage mode %q", cfg.Storage.Mode)
	}

	logger.Info("Snapshot store ready", log.String("mode", cfg.Storage.Mode))
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("Snapshot store close failed", log.Error(err))
		}
	}, nil
}

func ProvideManager(cfg *config.Config, logger log.Log) *controller.Manager {
	return controller.NewManager(cfg.Sim.Workers, logger.With(log.String("component", "manager")))
}

func ProvideEventStream(cfg *config.Config, events bus.EventBus, logger log.Log) *server.EventStream {
	sc := server.DefaultConfig()
	sc.Addr = cfg.Server.Addr
	return server.NewEventStream(sc, events, logger)
}
