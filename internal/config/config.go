package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Storage and ledger backends
const (
	BackendGoogle = "google"
	BackendLocal  = "local"
	BackendXLSX   = "xlsx"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Google    GoogleConfig    `mapstructure:"google"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// GoogleConfig holds the OAuth client used for Gmail, Drive and Sheets
type GoogleConfig struct {
	ClientID      string   `mapstructure:"client_id"`
	ClientSecret  string   `mapstructure:"client_secret"`
	RedirectURL   string   `mapstructure:"redirect_url"`
	Scopes        []string `mapstructure:"scopes"`
	CredentialKey string   `mapstructure:"credential_key"`
}

// OpenAIConfig holds the document model configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	ImageDetail string        `mapstructure:"image_detail"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxPages    int           `mapstructure:"max_pages"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
	TempDir     string        `mapstructure:"temp_dir"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// ArchiveConfig selects and configures the archival backend
type ArchiveConfig struct {
	Backend                 string `mapstructure:"backend"`
	RootFolderID            string `mapstructure:"root_folder_id"`
	SharedDriveID           string `mapstructure:"shared_drive_id"`
	LocalDir                string `mapstructure:"local_dir"`
	SerializeFolderCreation bool   `mapstructure:"serialize_folder_creation"`
}

// LedgerConfig selects and configures the ledger backend
type LedgerConfig struct {
	Backend       string `mapstructure:"backend"`
	SheetID       string `mapstructure:"sheet_id"`
	AppendRange   string `mapstructure:"append_range"`
	IDColumnRange string `mapstructure:"id_column_range"`
	XLSXPath      string `mapstructure:"xlsx_path"`
}

// IntakeConfig tunes discovery and candidate scheduling
type IntakeConfig struct {
	DefaultLookback time.Duration `mapstructure:"default_lookback"`
	MaxResults      int64         `mapstructure:"max_results"`
	BatchSize       int           `mapstructure:"batch_size"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	StreamSerially  bool          `mapstructure:"stream_serially"`
}

// RoutingConfig points at the entity registry
type RoutingConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// RedisConfig holds the folder lock backend configuration
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
}

// LarkConfig holds the run notification configuration
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	NotifyChatID string `mapstructure:"notify_chat_id"`
}

// Enabled reports whether run notifications should be sent
func (l LarkConfig) Enabled() bool {
	return l.NotifyChatID != ""
}

// SchedulerConfig controls periodic scans
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func Load(configPath string) (*Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Scans can run for minutes; the stream endpoint must not be cut off
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/intake.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.migrations_dir", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Google defaults
	v.SetDefault("google.redirect_url", "http://localhost:3000/oauth2callback")
	v.SetDefault("google.credential_key", "google")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.temperature", 0)
	v.SetDefault("openai.max_tokens", 4096)
	v.SetDefault("openai.image_detail", "high")
	v.SetDefault("openai.timeout", 90*time.Second)
	v.SetDefault("openai.max_pages", 3)
	v.SetDefault("openai.jpeg_quality", 85)
	v.SetDefault("openai.prompts_path", "configs/prompts.yaml")

	// Archive defaults
	v.SetDefault("archive.backend", BackendGoogle)
	v.SetDefault("archive.local_dir", "data/archive")
	v.SetDefault("archive.serialize_folder_creation", false)

	// Ledger defaults
	v.SetDefault("ledger.backend", BackendGoogle)
	v.SetDefault("ledger.append_range", "Sheet1!A:K")
	v.SetDefault("ledger.id_column_range", "Sheet1!C:C")
	v.SetDefault("ledger.xlsx_path", "data/ledger.xlsx")

	// Intake defaults
	v.SetDefault("intake.default_lookback", 24*time.Hour)
	v.SetDefault("intake.max_results", 50)
	v.SetDefault("intake.batch_size", 3)
	v.SetDefault("intake.call_timeout", 90*time.Second)
	v.SetDefault("intake.stream_serially", true)

	// Routing defaults
	v.SetDefault("routing.registry_path", "configs/registry.yaml")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.lock_wait", 10*time.Second)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.run_on_start", false)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	v.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	v.BindEnv("google.redirect_url", "GOOGLE_REDIRECT_URI")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("archive.root_folder_id", "GOOGLE_DRIVE_ROOT_FOLDER_ID")
	v.BindEnv("archive.shared_drive_id", "GOOGLE_SHARED_DRIVE_ID")
	v.BindEnv("ledger.sheet_id", "GOOGLE_SHEET_ID")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("lark.app_id", "LARK_APP_ID")
	v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	v.BindEnv("lark.notify_chat_id", "LARK_NOTIFY_CHAT_ID")
}

// Validate validates the configuration. Missing archive root and ledger ids
// are reported per run rather than at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate Google OAuth client
	if c.Google.ClientID == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_secret is required")
	}

	// Validate OpenAI credentials
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.PromptsPath == "" {
		return fmt.Errorf("openai.prompts_path is required")
	}

	switch strings.ToLower(c.Archive.Backend) {
	case BackendGoogle:
	case BackendLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local backend")
		}
	default:
		return fmt.Errorf("archive.backend must be %q or %q, got %q", BackendGoogle, BackendLocal, c.Archive.Backend)
	}

	switch strings.ToLower(c.Ledger.Backend) {
	case BackendGoogle:
	case BackendXLSX:
		if c.Ledger.XLSXPath == "" {
			return fmt.Errorf("ledger.xlsx_path is required for the xlsx backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be %q or %q, got %q", BackendGoogle, BackendXLSX, c.Ledger.Backend)
	}
	if c.Ledger.AppendRange == "" || c.Ledger.IDColumnRange == "" {
		return fmt.Errorf("ledger.append_range and ledger.id_column_range are required")
	}

	// Validate intake tuning
	if c.Intake.DefaultLookback <= 0 {
		return fmt.Errorf("intake.default_lookback must be positive")
	}
	if c.Intake.MaxResults <= 0 {
		return fmt.Errorf("intake.max_results must be positive")
	}
	if c.Intake.BatchSize <= 0 {
		return fmt.Errorf("intake.batch_size must be positive")
	}

	if c.Routing.RegistryPath == "" {
		return fmt.Errorf("routing.registry_path is required")
	}

	if c.Archive.SerializeFolderCreation && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when archive.serialize_folder_creation is set")
	}

	if c.Lark.Enabled() && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark.notify_chat_id is set")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive when the scheduler is enabled")
	}

	return nil
}
