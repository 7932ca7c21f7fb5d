// Package app assembles the booking core from configuration.  It is shared
// by the HTTP server and the CLI so both run against the same stack.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
	"github.com/iliyamo/venue-booking/internal/service"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// NewLogger builds the process logger: development output in dev, JSON
// otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Core is the wired booking core.
type Core struct {
	Store     repository.Store
	DB        *sql.DB // nil for the memory driver
	Detector  *conflict.Detector
	Engine    *availability.Engine
	Evaluator *policy.Evaluator
	Manager   *booking.Manager
}

// Close releases the database pool, if any.
func (c *Core) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// OpenStore opens the store selected by STORE_DRIVER.  The MySQL store is
// migrated first and seals guest contact fields when CONTACT_KEY is set.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, *sql.DB, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store with the demo venue; data is lost on exit")
		return memory.Demo(), nil, nil
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	var codec repository.ContactCodec
	if cfg.ContactKey != "" {
		sealer, err := utils.NewSealer(cfg.ContactKey)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		codec = sealer
	} else {
		log.Warn("CONTACT_KEY not set; guest contact fields are stored in plaintext")
	}
	return repository.NewMySQLStore(db, codec), db, nil
}

// NewCore opens the store and wires the core components on top of a
// singleflight-shared config loader.
func NewCore(ctx context.Context, cfg config.Config, log *zap.Logger) (*Core, error) {
	store, db, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	shared := service.NewSharedStore(store)
	det := conflict.NewDetector()
	eng := availability.NewEngine(shared, det, nil)
	mgr := booking.NewManager(shared, eng, det, log.Named("booking"), booking.Config{HoldTTL: cfg.DefaultHoldTTL})
	return &Core{
		Store:     shared,
		DB:        db,
		Detector:  det,
		Engine:    eng,
		Evaluator: policy.NewEvaluator(shared),
		Manager:   mgr,
	}, nil
}
