package container

import (
	"context"
	"fmt"

	"gonzs/adapters/battery"
	"gonzs/adapters/excel"
	"gonzs/adapters/postgres"
	"gonzs/adapters/rng"
	"gonzs/adapters/stats/senses"
	"gonzs/app"
	"gonzs/internal"
	"gonzs/internal/config"
	"gonzs/internal/migration"
	"gonzs/internal/testkit"
	"gonzs/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Engine
	RNG     *rng.PCGAdapter
	Sampler *battery.SubsetSampler
	Tester  *battery.PermutationTester
	Senses  *senses.SenseEngine

	// Result cache: PostgreSQL when a database is configured, in memory otherwise
	Cache ports.ResultCachePort

	// File adapters
	Reader *excel.DataReader
	Writer *excel.WorkbookWriter

	Service *app.AssociationService
}

// New creates a new dependency injection container with an in-memory cache
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		RNG:     rng.NewPCGAdapter(),
		Sampler: battery.NewSubsetSampler(),
		Senses:  senses.NewSenseEngine(),
		Cache:   testkit.NewInMemoryResultCache(),
		Reader:  excel.NewDataReader(),
		Writer:  excel.NewWorkbookWriter(),
	}
	c.Tester = battery.NewPermutationTester(c.RNG)
	c.Tester.SetWorkers(cfg.Analysis.Workers)
	c.buildService()

	return c, nil
}

// InitWithDatabase migrates the schema and switches the cache to PostgreSQL
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.DB = db
	c.Cache = postgres.NewResultCacheRepository(db)
	c.buildService()

	c.Logger.Info("[Container] result cache backed by PostgreSQL (schema %s)", runner.Version())
	return nil
}

func (c *Container) buildService() {
	c.Service = app.NewAssociationService(c.Senses, c.Tester, c.Sampler, c.RNG, c.Cache, c.Logger)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
