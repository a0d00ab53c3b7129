package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/application/service"
	"github.com/hadlocna/operations/internal/config"
	"github.com/hadlocna/operations/internal/infrastructure/external/google"
	"github.com/hadlocna/operations/internal/infrastructure/worker"
	"github.com/hadlocna/operations/internal/intake"
	"github.com/hadlocna/operations/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	tokens   *google.TokenProvider
	backends *BackendBundle
	redis    redis.UniversalClient
	locker   port.PathLocker
	notifier port.Notifier

	// Application
	orchestrator *intake.Orchestrator
	scanService  service.ScanService

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components. Components are initialized in dependency order:
// 1. Database and repositories
// 2. External clients (OAuth, archive and ledger backends, redis, Lark)
// 3. Intake pipeline
// 4. Application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 3: Initialize the intake pipeline
	if err := c.initPipeline(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize intake pipeline: %w", err)
	}
	c.logger.Info("Intake pipeline initialized")

	// Step 4: Initialize application services
	c.initServices()
	c.logger.Info("Application services initialized")

	// Step 5: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized, in reverse order
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Workers first so no scan starts against closed resources
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
		c.workers = nil
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redis = nil
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Redis only backs optional folder locks; an outage degrades to unlocked creation
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			status.Components["redis"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
		} else {
			status.Components["redis"] = ComponentHealth{Healthy: true}
		}
	}

	// Check credential
	if c.tokens != nil {
		cred, err := c.tokens.Status(ctx)
		switch {
		case err != nil:
			status.Components["credential"] = ComponentHealth{Healthy: false, Message: err.Error()}
		case !cred.Stored:
			status.Components["credential"] = ComponentHealth{Healthy: false, Message: "no stored credential"}
		case cred.Expired && !cred.Refreshable:
			status.Components["credential"] = ComponentHealth{Healthy: false, Message: "expired and not refreshable"}
		default:
			status.Components["credential"] = ComponentHealth{Healthy: true}
		}
	}

	// Check workers
	if c.workers != nil {
		health := ComponentHealth{
			Healthy: c.workers.Running(),
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
		for _, w := range c.workers.Snapshot() {
			if w.Error != "" {
				health.Healthy = false
				health.Message = fmt.Sprintf("%s failed to start: %s", w.Name, w.Error)
			}
		}
		status.Components["workers"] = health
		if !health.Healthy {
			status.Overall = false
		}
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = db
	c.repositories = ProvideRepositories(db, c.logger)
	return nil
}

// initExternalClients initializes the OAuth provider, backends, locks and notifier.
func (c *Container) initExternalClients() error {
	c.tokens = ProvideTokenProvider(&c.config.Google, c.repositories.Credential, c.logger.Named("oauth"))

	backends, err := ProvideBackends(&c.config.Archive, &c.config.Ledger, c.logger)
	if err != nil {
		return err
	}
	c.backends = backends

	if c.config.Archive.SerializeFolderCreation {
		c.redis = ProvideRedis(&c.config.Redis)
		c.locker = ProvideLocker(c.redis, &c.config.Redis, c.logger)
		c.logger.Info("Folder creation is serialized through redis",
			zap.String("addr", c.config.Redis.Addr))
	}

	c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	return nil
}

// initPipeline builds the analyzer and the orchestrator.
func (c *Container) initPipeline() error {
	analyzer, err := ProvideAnalyzer(&AnalyzerDeps{
		OpenAI: &c.config.OpenAI,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}

	orchestrator, err := ProvideOrchestrator(&PipelineDeps{
		Config:   c.config,
		Auth:     c.tokens,
		Analyzer: analyzer,
		Backends: c.backends,
		Locker:   c.locker,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	c.orchestrator = orchestrator
	return nil
}

// initServices initializes all application services.
func (c *Container) initServices() {
	c.scanService = service.NewScanService(
		c.orchestrator,
		c.repositories.ScanRun,
		c.notifier,
		service.ScanServiceConfig{SerialStreams: c.config.Intake.StreamSerially},
		c.logger.Named("scan"),
	)
}

// initWorkers initializes and starts all background workers.
func (c *Container) initWorkers() error {
	c.workers = worker.NewWorkerManager(c.logger)

	if c.config.Scheduler.Enabled {
		c.workers.Register(worker.NewScanWorker(worker.ScanWorkerConfig{
			Interval:   c.config.Scheduler.Interval,
			RunOnStart: c.config.Scheduler.RunOnStart,
		}, c.scanService, c.logger.Named("scheduler")))
	}

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Tokens returns the OAuth credential provider.
func (c *Container) Tokens() *google.TokenProvider {
	return c.tokens
}

// ScanService returns the scan service.
func (c *Container) ScanService() service.ScanService {
	return c.scanService
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
