package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
	Templates TemplatesConfig
	Render    RenderConfig
	Quota     QuotaConfig
	Storage   StorageConfig
	Artifacts ArtifactsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	CORSOrigins    []string
	// RateLimit is requests per RateWindow per requester; 0 disables it
	RateLimit  int
	RateWindow time.Duration
}

// AuthConfig configures how requesters are identified. Authentication
// itself happens upstream. With a JWTSecret the service verifies the
// gateway-signed HS256 token; without one it trusts the X-User-* headers.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	LogLevel        string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	LogsEnabled       bool // also ship log entries to the collector
	MetricsEnabled    bool // also push metrics to the collector
	MetricsInterval   time.Duration
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling settings. With tracing
// also enabled, spans are linked to the CPU profiles they sampled.
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. http://pyroscope:4040
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, mutex_count, ...
}

// MetricsConfig holds Prometheus scrape endpoint settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TemplatesConfig configures where template definitions come from
type TemplatesConfig struct {
	// Dir holds JSON definitions that override the built-in ones
	Dir string
	// UseDatabase merges definitions managed in the database
	UseDatabase     bool
	RefreshInterval time.Duration
}

// RenderConfig holds renderer policies
type RenderConfig struct {
	PDFEngine         string // fpdf, chromedp
	Rounding          string // half_up, half_even, truncate
	QRErrorCorrection string // auto, max, L, M, Q, H
	QRMaxVersion      int
	Timeout           time.Duration
	ChromeRemoteURL   string
	ChromeNoSandbox   bool
}

// QuotaConfig holds plan limits and the ledger backend
type QuotaConfig struct {
	Backend      string // memory, postgres, redis
	Period       string // monthly, daily
	FreeLimit    int64
	PremiumLimit int64 // -1 is unlimited
}

// StorageConfig selects the blob backend
type StorageConfig struct {
	Backend     string // filesystem, s3, memory
	BasePath    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
	S3Prefix    string
}

// ArtifactsConfig bounds artifact lifetimes and the expiry sweep
type ArtifactsConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepEnabled  bool
	SweepInterval time.Duration
	SweepBatch    int
	// Metadata selects where artifact metadata lives: database or memory
	Metadata string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DOCGEN_ prefix (e.g., DOCGEN_DATABASE_PASSWORD)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/docgen")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DOCGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("quota.premium_limit", -1)
	v.SetDefault("artifacts.sweep_enabled", true)
	v.SetDefault("metrics.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			CORSOrigins:    v.GetStringSlice("http.cors_origins"),
			RateLimit:      v.GetInt("http.rate_limit"),
			RateWindow:     v.GetDuration("http.rate_window"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWTIssuer: v.GetString("auth.jwt_issuer"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling_enabled"),
				ServerAddress:     v.GetString("telemetry.profiling_server_address"),
				BasicAuthUser:     v.GetString("telemetry.profiling_basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling_basic_auth_password"),
				ProfileTypes:      v.GetStringSlice("telemetry.profiling_types"),
			},
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
		Templates: TemplatesConfig{
			Dir:             v.GetString("templates.dir"),
			UseDatabase:     v.GetBool("templates.use_database"),
			RefreshInterval: v.GetDuration("templates.refresh_interval"),
		},
		Render: RenderConfig{
			PDFEngine:         v.GetString("render.pdf_engine"),
			Rounding:          v.GetString("render.rounding"),
			QRErrorCorrection: v.GetString("render.qr_error_correction"),
			QRMaxVersion:      v.GetInt("render.qr_max_version"),
			Timeout:           v.GetDuration("render.timeout"),
			ChromeRemoteURL:   v.GetString("render.chrome_remote_url"),
			ChromeNoSandbox:   v.GetBool("render.chrome_no_sandbox"),
		},
		Quota: QuotaConfig{
			Backend:      v.GetString("quota.backend"),
			Period:       v.GetString("quota.period"),
			FreeLimit:    v.GetInt64("quota.free_limit"),
			PremiumLimit: v.GetInt64("quota.premium_limit"),
		},
		Storage: StorageConfig{
			Backend:     v.GetString("storage.backend"),
			BasePath:    v.GetString("storage.base_path"),
			S3Bucket:    v.GetString("storage.s3_bucket"),
			S3Region:    v.GetString("storage.s3_region"),
			S3Endpoint:  v.GetString("storage.s3_endpoint"),
			S3AccessKey: v.GetString("storage.s3_access_key"),
			S3SecretKey: v.GetString("storage.s3_secret_key"),
			S3PathStyle: v.GetBool("storage.s3_path_style"),
			S3Prefix:    v.GetString("storage.s3_prefix"),
		},
		Artifacts: ArtifactsConfig{
			DefaultTTL:    v.GetDuration("artifacts.default_ttl"),
			MaxTTL:        v.GetDuration("artifacts.max_ttl"),
			SweepEnabled:  v.GetBool("artifacts.sweep_enabled"),
			SweepInterval: v.GetDuration("artifacts.sweep_interval"),
			SweepBatch:    v.GetInt("artifacts.sweep_batch"),
			Metadata:      v.GetString("artifacts.metadata"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "docgen"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.HTTP.RateWindow == 0 {
		cfg.HTTP.RateWindow = time.Minute
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "docgen"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "docgen.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "docgen:"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = time.Minute
	}
	if cfg.Telemetry.Profiling.ServerAddress == "" {
		cfg.Telemetry.Profiling.ServerAddress = "http://localhost:4040"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Templates.RefreshInterval == 0 {
		cfg.Templates.RefreshInterval = 5 * time.Minute
	}

	if cfg.Render.PDFEngine == "" {
		cfg.Render.PDFEngine = "fpdf"
	}
	if cfg.Render.Rounding == "" {
		cfg.Render.Rounding = "half_up"
	}
	if cfg.Render.QRErrorCorrection == "" {
		cfg.Render.QRErrorCorrection = "auto"
	}
	if cfg.Render.QRMaxVersion == 0 {
		cfg.Render.QRMaxVersion = 10
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 30 * time.Second
	}

	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = "postgres"
	}
	if cfg.Quota.Period == "" {
		cfg.Quota.Period = "monthly"
	}
	if cfg.Quota.FreeLimit == 0 {
		cfg.Quota.FreeLimit = 5
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "filesystem"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/artifacts"
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "us-east-1"
	}

	if cfg.Artifacts.DefaultTTL == 0 {
		cfg.Artifacts.DefaultTTL = 30 * 24 * time.Hour
	}
	if cfg.Artifacts.MaxTTL == 0 {
		cfg.Artifacts.MaxTTL = 90 * 24 * time.Hour
	}
	if cfg.Artifacts.SweepInterval == 0 {
		cfg.Artifacts.SweepInterval = time.Hour
	}
	if cfg.Artifacts.SweepBatch == 0 {
		cfg.Artifacts.SweepBatch = 500
	}
	if cfg.Artifacts.Metadata == "" {
		cfg.Artifacts.Metadata = "database"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if !oneOf(c.Database.Driver, "postgres", "sqlite") {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.MetricsInterval < time.Second {
		return fmt.Errorf("telemetry.metrics_interval must be at least 1s, got %s", c.Telemetry.MetricsInterval)
	}
	if c.Telemetry.Profiling.Enabled && !strings.HasPrefix(c.Telemetry.Profiling.ServerAddress, "http") {
		return fmt.Errorf("telemetry.profiling_server_address must be an http(s) URL, got %q", c.Telemetry.Profiling.ServerAddress)
	}

	if !oneOf(c.Render.PDFEngine, "fpdf", "chromedp") {
		return fmt.Errorf("render.pdf_engine must be fpdf or chromedp, got %q", c.Render.PDFEngine)
	}
	if !oneOf(c.Render.Rounding, "half_up", "half_even", "truncate") {
		return fmt.Errorf("render.rounding must be half_up, half_even or truncate, got %q", c.Render.Rounding)
	}
	if !oneOf(strings.ToUpper(c.Render.QRErrorCorrection), "AUTO", "MAX", "L", "M", "Q", "H") {
		return fmt.Errorf("render.qr_error_correction must be auto, max, L, M, Q or H, got %q", c.Render.QRErrorCorrection)
	}
	if c.Render.QRMaxVersion < 1 || c.Render.QRMaxVersion > 40 {
		return fmt.Errorf("render.qr_max_version must be between 1 and 40")
	}

	if !oneOf(c.Quota.Backend, "memory", "postgres", "redis") {
		return fmt.Errorf("quota.backend must be memory, postgres or redis, got %q", c.Quota.Backend)
	}
	if !oneOf(c.Quota.Period, "monthly", "daily") {
		return fmt.Errorf("quota.period must be monthly or daily, got %q", c.Quota.Period)
	}
	if c.Quota.FreeLimit < -1 || c.Quota.PremiumLimit < -1 {
		return fmt.Errorf("quota limits must be -1 (unlimited) or non-negative")
	}

	if !oneOf(c.Storage.Backend, "filesystem", "s3", "memory") {
		return fmt.Errorf("storage.backend must be filesystem, s3 or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required when storage.backend is s3")
	}
	if !oneOf(c.Artifacts.Metadata, "database", "memory") {
		return fmt.Errorf("artifacts.metadata must be database or memory, got %q", c.Artifacts.Metadata)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Artifacts.MaxTTL < c.Artifacts.DefaultTTL {
		return fmt.Errorf("artifacts.max_ttl (%s) cannot be shorter than artifacts.default_ttl (%s)",
			c.Artifacts.MaxTTL, c.Artifacts.DefaultTTL)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Quota.Backend == "memory" {
			return fmt.Errorf("quota.backend cannot be memory in production")
		}
		if c.Storage.Backend == "memory" || c.Artifacts.Metadata == "memory" {
			return fmt.Errorf("artifact storage cannot be in memory in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// NeedsDatabase reports whether any configured component uses the database
func (c *Config) NeedsDatabase() bool {
	return c.Quota.Backend == "postgres" || c.Artifacts.Metadata == "database" || c.Templates.UseDatabase
}

// NeedsRedis reports whether any configured component uses Redis
func (c *Config) NeedsRedis() bool {
	return c.Quota.Backend == "redis"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
