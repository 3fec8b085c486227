package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/behaviour/internal/core/behaviour"
	"github.com/zeusync/behaviour/internal/core/controller"
	"github.com/zeusync/behaviour/internal/core/npc"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/injector"
)

// npcNamespace derives stable NPC ids from their names so snapshots written
// by one run are found by the next.
var npcNamespace = uuid.MustParse("0f5b5c1e-3d4e-4a7b-9a51-6c1d2f1e8b90")

func loadTemplates(app *injector.App) ([]*behaviour.Template, error) {
	doc, err := behaviour.LoadFile(app.Config.Sim.Assets)
	if err != nil {
		return nil, err
	}
	return doc.Build(app.Registry)
}

// spawn creates sim.npcs NPCs, initializes a controller for each and registers
// it with the manager.
func spawn(app *injector.App, templates []*behaviour.Template) error {
	for i := 0; i < app.Config.Sim.NPCs; i++ {
		name := fmt.Sprintf("guard-%03d", i)
		owner := npc.NewWithID(uuid.NewSHA1(npcNamespace, []byte(name)).String(), name, app.Config.Sim.InitialState)

		ctrl := controller.New(owner, templates,
			controller.WithLogger(app.Logger),
			controller.WithBus(app.Events),
			controller.WithHistoryLimit(app.Config.Sim.HistoryLimit),
		)
		enabled, err := ctrl.Init()
		if err != nil {
			app.Logger.Warn("Some behaviours failed to initialize", log.Owner(owner.ID()), log.Error(err))
		}
		if err = app.Manager.Add(ctrl); err != nil {
			return err
		}
		app.Logger.Debug("NPC spawned", log.Owner(owner.ID()), log.String("name", name), log.Int("enabled", enabled))
	}
	return nil
}

// snapshotLoop saves every controller each interval and once more on exit.
func snapshotLoop(ctx context.Context, app *injector.App) error {
	save := func(ctx context.Context) {
		if err := app.Manager.SaveAll(ctx, app.Store); err != nil {
			app.Logger.Error("Snapshot save failed", log.Error(err))
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		save(ctx)
	}()

	interval := app.Config.Storage.SnapshotInterval
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			save(ctx)
		}
	}
}

func run(ctx context.Context, app *injector.App) error {
	templates, err := loadTemplates(app)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	if err = spawn(app, templates); err != nil {
		return err
	}

	restored, err := app.Manager.RestoreAll(ctx, app.Store)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}
	app.Logger.Info("Simulation ready",
		log.Int("npcs", app.Manager.Len()),
		log.Int("behaviours", len(templates)),
		log.Int("restored", restored))

	if app.Config.Server.Enabled {
		if err = app.Stream.Start(ctx); err != nil {
			return fmt.Errorf("start event stream: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.Stream.Stop(stopCtx); err != nil {
				app.Logger.Warn("Event stream shutdown failed", log.Error(err))
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Manager.Run(gctx, app.Config.Sim.TickInterval) })
	g.Go(func() error { return snapshotLoop(gctx, app) })
	err = g.Wait()

	for _, c := range app.Manager.Controllers() {
		app.Manager.Remove(c.ID())
	}
	app.Logger.Info("Simulation stopped")
	return err
}
