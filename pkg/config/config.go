package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/storage"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// ConfigFileEnv names the optional YAML file loaded before the environment
const ConfigFileEnv = "WORKSPACES_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Persistence configures the write-behind outbox
	Persistence PersistenceConfig `yaml:"persistence"`

	Invites InviteConfig `yaml:"invites"`

	Keys KeysConfig `yaml:"keys"`

	Search SearchConfig `yaml:"search"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// PersistenceConfig controls write-behind of manager mutations
type PersistenceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	QueueSize        int           `yaml:"queue_size"`
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"`
	HydrationTimeout time.Duration `yaml:"hydration_timeout"`
}

// InviteConfig holds invite lifetime and link settings
type InviteConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	BaseURL       string        `yaml:"base_url"`
}

// KeysConfig selects the global fallback key store. SealedFile and
// IdentityFile select the age sealed store, otherwise StaticKeys is used.
type KeysConfig struct {
	SealedFile   string            `yaml:"sealed_file"`
	IdentityFile string            `yaml:"identity_file"`
	CacheSize    int               `yaml:"cache_size"`
	CacheTTL     time.Duration     `yaml:"cache_ttl"`
	Watch        bool              `yaml:"watch"`
	StaticKeys   map[string]string `yaml:"static_keys"`
}

// Sealed reports whether the sealed key store is configured
func (k KeysConfig) Sealed() bool {
	return k.SealedFile != ""
}

// SearchConfig bounds cross-workspace search
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	Concurrency  int `yaml:"concurrency"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the OpenTelemetry settings in the form InitOTel takes
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Persistence: PersistenceConfig{
			Enabled:          false,
			QueueSize:        1024,
			MaxAttempts:      5,
			InitialBackoff:   100 * time.Millisecond,
			MaxBackoff:       5 * time.Second,
			AttemptTimeout:   10 * time.Second,
			HydrationTimeout: 30 * time.Second,
		},
		Invites: InviteConfig{
			TTL:           workspace.DefaultInviteTTL,
			SweepSchedule: workspace.DefaultSweepSchedule,
			BaseURL:       "http://localhost:8080/invite",
		},
		Keys: KeysConfig{
			CacheSize: 64,
			CacheTTL:  5 * time.Minute,
			Watch:     true,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			Concurrency:  8,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "workspaced",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads defaults, then the YAML file named by
// WORKSPACES_CONFIG_FILE, then environment variables, then validates
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadServerConfig()
	cfg.loadStorageConfig()
	cfg.loadPersistenceConfig()
	cfg.loadInviteConfig()
	cfg.loadKeysConfig()
	cfg.loadSearchConfig()
	cfg.loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays a YAML file onto the current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadServerConfig() {
	s := &c.Server
	s.Host = getEnv("WORKSPACES_HOST", s.Host)
	s.Port = getEnv("WORKSPACES_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("WORKSPACES_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WORKSPACES_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("WORKSPACES_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("WORKSPACES_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("WORKSPACES_HEALTH_PORT", s.HealthPort)
}

func (c *Config) loadStorageConfig() {
	s := &c.Storage
	if backend := getEnv("WORKSPACES_STORAGE_BACKEND", ""); backend != "" {
		s.Backend = storage.Backend(strings.ToLower(backend))
	}
	s.FilesystemRoot = getEnv("WORKSPACES_FILESYSTEM_ROOT", s.FilesystemRoot)

	// PostgreSQL config
	s.PostgresURL = getEnv("WORKSPACES_POSTGRES_URL", s.PostgresURL)
	if replicaURLs := getEnv("WORKSPACES_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		s.PostgresReplicaURLs = splitList(replicaURLs)
	}
	if maxConns := getEnvInt("WORKSPACES_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		s.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("WORKSPACES_POSTGRES_MIN_CONNS", -1); minConns >= 0 {
		s.PostgresMinConns = minConns
	}
	s.PostgresTimeout = getEnvDuration("WORKSPACES_POSTGRES_TIMEOUT", s.PostgresTimeout)
	s.AutoMigrate = getEnvBool("WORKSPACES_AUTO_MIGRATE", s.AutoMigrate)

	// Redis config
	s.RedisURL = getEnv("WORKSPACES_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("WORKSPACES_REDIS_PASSWORD", s.RedisPassword)
	if redisDB := getEnvInt("WORKSPACES_REDIS_DB", -1); redisDB >= 0 {
		s.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("WORKSPACES_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		s.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("WORKSPACES_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		s.RedisPoolSize = redisPoolSize
	}
	s.RedisKeyPrefix = getEnv("WORKSPACES_REDIS_KEY_PREFIX", s.RedisKeyPrefix)
}

func (c *Config) loadPersistenceConfig() {
	p := &c.Persistence
	p.Enabled = getEnvBool("WORKSPACES_PERSISTENCE_ENABLED", p.Enabled)
	p.QueueSize = getEnvInt("WORKSPACES_OUTBOX_QUEUE_SIZE", p.QueueSize)
	p.MaxAttempts = getEnvInt("WORKSPACES_OUTBOX_MAX_ATTEMPTS", p.MaxAttempts)
	p.InitialBackoff = getEnvDuration("WORKSPACES_OUTBOX_INITIAL_BACKOFF", p.InitialBackoff)
	p.MaxBackoff = getEnvDuration("WORKSPACES_OUTBOX_MAX_BACKOFF", p.MaxBackoff)
	p.AttemptTimeout = getEnvDuration("WORKSPACES_OUTBOX_ATTEMPT_TIMEOUT", p.AttemptTimeout)
	p.HydrationTimeout = getEnvDuration("WORKSPACES_HYDRATION_TIMEOUT", p.HydrationTimeout)
}

func (c *Config) loadInviteConfig() {
	i := &c.Invites
	i.TTL = getEnvDuration("WORKSPACES_INVITE_TTL", i.TTL)
	i.SweepSchedule = getEnv("WORKSPACES_INVITE_SWEEP_SCHEDULE", i.SweepSchedule)
	i.BaseURL = getEnv("WORKSPACES_INVITE_BASE_URL", i.BaseURL)
}

func (c *Config) loadKeysConfig() {
	k := &c.Keys
	k.SealedFile = getEnv("WORKSPACES_KEYS_SEALED_FILE", k.SealedFile)
	k.IdentityFile = getEnv("WORKSPACES_KEYS_IDENTITY_FILE", k.IdentityFile)
	k.CacheSize = getEnvInt("WORKSPACES_KEYS_CACHE_SIZE", k.CacheSize)
	k.CacheTTL = getEnvDuration("WORKSPACES_KEYS_CACHE_TTL", k.CacheTTL)
	k.Watch = getEnvBool("WORKSPACES_KEYS_WATCH", k.Watch)

	// provider=key pairs, for development only
	if static := getEnv("WORKSPACES_KEYS_STATIC", ""); static != "" {
		if k.StaticKeys == nil {
			k.StaticKeys = make(map[string]string)
		}
		for _, pair := range splitList(static) {
			provider, key, ok := strings.Cut(pair, "=")
			if ok && provider != "" {
				k.StaticKeys[strings.TrimSpace(provider)] = strings.TrimSpace(key)
			}
		}
	}
}

func (c *Config) loadSearchConfig() {
	s := &c.Search
	s.DefaultLimit = getEnvInt("WORKSPACES_SEARCH_DEFAULT_LIMIT", s.DefaultLimit)
	s.MaxLimit = getEnvInt("WORKSPACES_SEARCH_MAX_LIMIT", s.MaxLimit)
	s.Concurrency = getEnvInt("WORKSPACES_SEARCH_CONCURRENCY", s.Concurrency)
}

func (c *Config) loadObservabilityConfig() {
	o := &c.Observability
	o.LogLevel = getEnv("WORKSPACES_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("WORKSPACES_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("WORKSPACES_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WORKSPACES_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WORKSPACES_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WORKSPACES_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WORKSPACES_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("WORKSPACES_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}
	if c.Persistence.Enabled && c.Storage.Backend == storage.BackendMemory {
		return fmt.Errorf("persistence requires a durable storage backend, got %s", c.Storage.Backend)
	}
	if c.Persistence.MaxAttempts < 0 || c.Persistence.QueueSize < 0 {
		return fmt.Errorf("outbox queue size and max attempts must not be negative")
	}

	if c.Invites.TTL <= 0 {
		return fmt.Errorf("invite TTL must be positive")
	}
	if c.Invites.BaseURL == "" {
		return fmt.Errorf("invite base URL is required")
	}

	if c.Keys.Sealed() && c.Keys.IdentityFile == "" {
		return fmt.Errorf("keys identity file is required when a sealed key file is set")
	}

	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search default limit %d exceeds max limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.Concurrency <= 0 {
		return fmt.Errorf("search concurrency must be positive")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Observability.LogLevel)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// splitList splits a comma separated value, dropping empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
