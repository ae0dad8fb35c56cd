package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/sony/gobreaker"

	"github.com/mind-engage/cityprosperity/internal/city"
	"github.com/mind-engage/cityprosperity/internal/config"
	"github.com/mind-engage/cityprosperity/internal/db"
	"github.com/mind-engage/cityprosperity/internal/record"
	syncx "github.com/mind-engage/cityprosperity/internal/sync"
)

// app is everything a command needs once config is loaded.
type app struct {
	cfg     config.Config
	db      *sql.DB
	service *city.Service
	close   func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	closers := []func(){func() { dbh.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store record.Store
	switch cfg.RecordBackend {
	case "memory":
		store = record.NewMemoryStore()
	case "mongo":
		cli, err := record.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = cli.Disconnect(context.Background()) })
		ms, err := record.NewMongoStore(ctx, cli.Database(cfg.MongoDatabase))
		if err != nil {
			closeAll()
			return nil, err
		}
		store = ms
	default:
		store = record.NewSQLStore(dbh, cfg.DBDriver)
	}
	if cfg.StoreBreaker {
		store = record.WithBreaker(store, gobreaker.Settings{
			Name:    "records-" + cfg.RecordBackend,
			Timeout: cfg.StoreBreakerTimeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("breaker %s: %s -> %s", name, from, to)
			},
		})
	}

	svc := city.NewService(store, city.WithEventLog(syncx.NewEventRepo(dbh)))
	return &app{cfg: cfg, db: dbh, service: svc, close: closeAll}, nil
}
