// Package container provides dependency injection and lifecycle management
// for the invoice intake service.
package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/archive"
	"github.com/hadlocna/operations/internal/config"
	"github.com/hadlocna/operations/internal/infrastructure/external/google"
	infraLark "github.com/hadlocna/operations/internal/infrastructure/external/lark"
	"github.com/hadlocna/operations/internal/infrastructure/external/openai"
	"github.com/hadlocna/operations/internal/infrastructure/lock"
	"github.com/hadlocna/operations/internal/infrastructure/persistence/repository"
	"github.com/hadlocna/operations/internal/infrastructure/spreadsheet"
	"github.com/hadlocna/operations/internal/infrastructure/storage"
	"github.com/hadlocna/operations/internal/intake"
	"github.com/hadlocna/operations/internal/invoice"
	"github.com/hadlocna/operations/internal/ledger"
	"github.com/hadlocna/operations/internal/routing"
	"github.com/hadlocna/operations/migrations"
	"github.com/hadlocna/operations/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Credential port.CredentialRepository
	ScanRun    port.ScanRunRepository
}

// BackendBundle holds the archive and ledger backends selected by configuration.
type BackendBundle struct {
	Storage      port.RemoteStorage
	RootFolderID string
	Ledger       port.RemoteLedger
	SheetID      string
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	// An explicit directory overrides the migrations compiled into the binary
	var schema fs.FS = migrations.Files
	if cfg.MigrationsDir != "" {
		schema = os.DirFS(cfg.MigrationsDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := database.NewMigrator(db, logger).Migrate(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// ProvideRepositories creates all repositories over db.
func ProvideRepositories(db *database.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Credential: repository.NewCredentialRepository(db.DB, logger),
		ScanRun:    repository.NewScanRunRepository(db.DB, logger),
	}
}

// ProvideTokenProvider creates the OAuth credential provider.
func ProvideTokenProvider(cfg *config.GoogleConfig, repo port.CredentialRepository, logger *zap.Logger) *google.TokenProvider {
	return google.NewTokenProvider(repo, google.OAuthConfig{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURL:   cfg.RedirectURL,
		Scopes:        cfg.Scopes,
		CredentialKey: cfg.CredentialKey,
	}, logger)
}

// ProvideBackends selects the archive and ledger backends.
func ProvideBackends(archiveCfg *config.ArchiveConfig, ledgerCfg *config.LedgerConfig, logger *zap.Logger) (*BackendBundle, error) {
	b := &BackendBundle{}

	switch strings.ToLower(archiveCfg.Backend) {
	case config.BackendGoogle:
		b.Storage = google.NewDriveStorage(archiveCfg.SharedDriveID, "", logger.Named("drive"))
		b.RootFolderID = archiveCfg.RootFolderID
	case config.BackendLocal:
		b.Storage = storage.NewLocalStorage(archiveCfg.LocalDir, logger.Named("local_storage"))
		b.RootFolderID = archiveCfg.RootFolderID
		if b.RootFolderID == "" {
			b.RootFolderID = storage.RootFolderID
		}
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", archiveCfg.Backend)
	}

	switch strings.ToLower(ledgerCfg.Backend) {
	case config.BackendGoogle:
		b.Ledger = google.NewSheetsLedger("", logger.Named("sheets"))
		b.SheetID = ledgerCfg.SheetID
	case config.BackendXLSX:
		b.Ledger = spreadsheet.NewXLSXLedger(ledgerCfg.XLSXPath, logger.Named("xlsx_ledger"))
		b.SheetID = ledgerCfg.SheetID
		if b.SheetID == "" {
			b.SheetID = ledgerCfg.XLSXPath
		}
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", ledgerCfg.Backend)
	}

	return b, nil
}

// ProvideRedis creates the redis client used for folder locks.
func ProvideRedis(cfg *config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ProvideLocker creates the folder locker.
func ProvideLocker(rdb redis.UniversalClient, cfg *config.RedisConfig, logger *zap.Logger) port.PathLocker {
	return lock.NewRedisLocker(rdb, lock.Config{
		TTL:  cfg.LockTTL,
		Wait: cfg.LockWait,
	}, logger.Named("lock"))
}

// ProvideNotifier creates the run notifier, nil when notifications are disabled.
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled() {
		return nil
	}
	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	}, logger)
	return infraLark.NewRunNotifier(infraLark.NewMessageAPI(client, logger), cfg.NotifyChatID, logger.Named("notifier"))
}

// AnalyzerDeps holds the dependencies of the document analyzer.
type AnalyzerDeps struct {
	OpenAI *config.OpenAIConfig
	Logger *zap.Logger
}

// ProvideAnalyzer creates the document analyzer over the OpenAI document model.
func ProvideAnalyzer(deps *AnalyzerDeps) (*invoice.Analyzer, error) {
	cfg := deps.OpenAI

	prompts, err := invoice.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	model := openai.NewDocumentModel(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		ImageDetail: cfg.ImageDetail,
		Timeout:     cfg.Timeout,
	}, deps.Logger.Named("openai"))

	renderer := invoice.NewFitzRenderer(cfg.JPEGQuality, deps.Logger)

	return invoice.NewAnalyzer(model, renderer, prompts.InvoiceExtraction, invoice.Config{
		MaxPages: cfg.MaxPages,
		TempDir:  cfg.TempDir,
	}, deps.Logger.Named("analyzer")), nil
}

// PipelineDeps holds the dependencies of the intake orchestrator.
type PipelineDeps struct {
	Config   *config.Config
	Auth     port.AuthProvider
	Analyzer intake.Analyzer
	Backends *BackendBundle
	Locker   port.PathLocker
	Logger   *zap.Logger
}

// ProvideOrchestrator creates the router, archival store, ledger writer and
// the orchestrator driving them.
func ProvideOrchestrator(deps *PipelineDeps) (*intake.Orchestrator, error) {
	cfg := deps.Config

	registry, err := routing.LoadRegistry(cfg.Routing.RegistryPath)
	if err != nil {
		return nil, err
	}
	router, err := routing.NewRouter(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	var opts []archive.Option
	if deps.Locker != nil {
		opts = append(opts, archive.WithLocker(deps.Locker))
	}
	store := archive.NewStore(deps.Backends.Storage, deps.Backends.RootFolderID, deps.Logger.Named("archive"), opts...)

	writer := ledger.NewWriter(deps.Backends.Ledger, ledger.Config{
		SheetID:       deps.Backends.SheetID,
		AppendRange:   cfg.Ledger.AppendRange,
		IDColumnRange: cfg.Ledger.IDColumnRange,
	}, deps.Logger.Named("ledger"))

	return intake.NewOrchestrator(
		deps.Auth,
		google.NewGmailSource("", deps.Logger.Named("gmail")),
		deps.Analyzer,
		router,
		store,
		writer,
		intake.Config{
			Lookback:    cfg.Intake.DefaultLookback,
			MaxResults:  cfg.Intake.MaxResults,
			BatchSize:   cfg.Intake.BatchSize,
			CallTimeout: cfg.Intake.CallTimeout,
		},
		deps.Logger.Named("intake"),
	), nil
}
