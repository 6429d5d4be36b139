package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"standupbot/api"
	"standupbot/config"
	"standupbot/db"
	"standupbot/scheduler"
	"standupbot/standup"
	"standupbot/utils"
	"standupbot/worker"
)

const invokeTimeout = 30 * time.Second

// stores holds whichever backend STORE_DRIVER selected.
type stores struct {
	gdb *gorm.DB
	mdb *mongo.Database

	statuses    *db.Statuses
	parkingLots *db.ParkingLots
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverMongo {
		mdb, err := db.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &stores{
			mdb:         mdb,
			statuses:    db.NewStatuses(db.NewMongoBackend(mdb, db.StatusKind), log),
			parkingLots: db.NewParkingLots(db.NewMongoBackend(mdb, db.ParkingLotKind), log),
		}, nil
	}

	gdb, err := db.Open(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &stores{
		gdb:         gdb,
		statuses:    db.NewStatuses(db.NewGormBackend(gdb, db.StatusKind), log),
		parkingLots: db.NewParkingLots(db.NewGormBackend(gdb, db.ParkingLotKind), log),
	}, nil
}

func (s *stores) provision(ctx context.Context) error {
	if s.mdb != nil {
		return db.EnsureIndexes(ctx, s.mdb)
	}
	return db.Migrate(s.gdb)
}

// needsSweep reports whether expiry has to be done by the sweeper.
func (s *stores) needsSweep() bool { return s.gdb != nil }

func (s *stores) sweeper(log *zap.Logger) *scheduler.Sweeper {
	return scheduler.NewSweeper(log, s.statuses, s.parkingLots)
}

func (s *stores) Close() error {
	if s.mdb != nil {
		return s.mdb.Client().Disconnect(context.Background())
	}
	return db.Close(s.gdb)
}

// app is everything the HTTP surface needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	stores  *stores
	router  http.Handler
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, stores: st}

	invoker, err := a.newInvoker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	platform := api.NewSlackPlatform(cfg.SlackBotToken, log)
	orch := standup.NewOrchestrator(platform, st.statuses, st.parkingLots, log)
	h := api.NewHandler(orch, utils.NewSigner(cfg.SlackSigningSecret), invoker, log)
	a.router = SetupRouter(h, cfg.SlackSigningSecret, log)
	return a, nil
}

func (a *app) newInvoker(ctx context.Context) (worker.Invoker, error) {
	switch a.cfg.DelegateTransport {
	case config.TransportRedis:
		client, err := utils.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return worker.NewRedisInvoker(client, a.cfg.WorkerQueue), nil
	case config.TransportHTTP:
		invoker := worker.NewHTTPInvoker(&http.Client{Timeout: invokeTimeout}, a.cfg.WorkerURL, a.log)
		a.closers = append(a.closers, invoker.Wait)
		return invoker, nil
	}
	return nil, fmt.Errorf("newInvoker: unsupported transport %q", a.cfg.DelegateTransport)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if err := a.stores.Close(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("Close: failed to close store", zap.Error(err))
	}
}
