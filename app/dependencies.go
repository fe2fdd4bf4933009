package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/config"
	"github.com/upb/site-control-plane/middleware"
	"github.com/upb/site-control-plane/repositories"
	"github.com/upb/site-control-plane/repositories/file"
	"github.com/upb/site-control-plane/repositories/postgres"
	"github.com/upb/site-control-plane/services/audit"
	"github.com/upb/site-control-plane/services/session"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when the file backend is selected
	Logger *zap.Logger

	// Repositories
	States   repositories.StateRepository
	AuditLog repositories.AuditRepository

	// Services
	AuditSink *audit.Sink
	Sessions  *session.Registry

	// Auth
	OwnerAuth *middleware.OwnerAuth
}

// NewDependencies creates and wires up all application dependencies.
// The global session actor is opened eagerly so its state load completes
// before the server starts accepting requests.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps.initAudit(cfg)
	deps.initAuth(cfg)

	if err := deps.initSessions(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStorage selects the persistence backend and builds the repositories
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.DB = db
		d.States = postgres.NewStateRepository(db.DB, d.Logger)
		d.AuditLog = postgres.NewAuditRepository(db.DB, d.Logger)

	case config.BackendFile:
		d.States = file.NewStateRepository(cfg.Storage.StateDir, d.Logger)
		d.AuditLog = file.NewAuditRepository(cfg.Storage.StateDir, d.Logger)
		d.Logger.Info("using file storage backend",
			zap.String("dir", cfg.Storage.StateDir))

	default:
		return fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}

	return nil
}

// initAudit builds the audit sink on top of the durable mirror
func (d *Dependencies) initAudit(cfg *config.Config) {
	d.AuditSink = audit.NewSink(cfg.Audit.Capacity, d.AuditLog, d.Logger)
	d.Logger.Info("audit sink initialized",
		zap.Int("capacity", cfg.Audit.Capacity))
}

// initSessions builds the session registry and opens the global actor
func (d *Dependencies) initSessions(ctx context.Context, cfg *config.Config) error {
	actorCfg := session.Config{
		Allowlist:             cfg.Session.Allowlist,
		RateLimitThreshold:    cfg.Session.RateLimitThreshold,
		RateLimitWindow:       cfg.Session.RateLimitWindow,
		IdempotencyTTL:        cfg.Session.IdempotencyTTL,
		IdempotencyMaxEntries: cfg.Session.IdempotencyMaxEntries,
	}

	d.Sessions = session.NewRegistry(func(ctx context.Context, key string) (*session.Actor, error) {
		return session.NewActor(ctx, key, actorCfg, d.States, d.AuditSink, d.Logger)
	})

	if _, err := d.Sessions.Open(ctx, session.GlobalKey); err != nil {
		return fmt.Errorf("failed to open global session: %w", err)
	}
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	d.OwnerAuth = middleware.NewOwnerAuth(cfg.Owner.Token, d.Logger)
}

// HealthCheck verifies the dependencies that can fail at runtime
func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if d.DB != nil {
		return d.DB.HealthCheck(ctx)
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Sessions != nil {
		d.Sessions.Close()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
