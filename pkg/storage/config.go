package storage

import (
	"fmt"
	"time"
)

// Backend names a repository implementation
type Backend string

const (
	BackendMemory     Backend = "memory"
	BackendFilesystem Backend = "filesystem"
	BackendPostgres   Backend = "postgres"
	BackendRedis      Backend = "redis"
)

// Config for the repository backend
type Config struct {
	Backend Backend `yaml:"backend"`

	// Filesystem config
	FilesystemRoot string `yaml:"filesystem_root"`

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	AutoMigrate         bool          `yaml:"auto_migrate"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
	RedisKeyPrefix  string `yaml:"redis_key_prefix"`
}

// DefaultConfig returns the in-memory backend with production pool sizes
func DefaultConfig() Config {
	return Config{
		Backend:          BackendMemory,
		FilesystemRoot:   "/var/lib/workspaces",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		AutoMigrate:      true,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		RedisKeyPrefix:   "workspaces:",
	}
}

// Validate checks that the selected backend has what it needs
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFilesystem:
		if c.FilesystemRoot == "" {
			return fmt.Errorf("filesystem backend requires a root directory")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres backend requires a URL")
		}
		if c.PostgresMaxConns <= 0 || c.PostgresMinConns < 0 || c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("invalid postgres pool size: min %d max %d", c.PostgresMinConns, c.PostgresMaxConns)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis backend requires a URL")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}
