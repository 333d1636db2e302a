// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// LoadConfig starts from Default, overlays the YAML file named by
// WORKSPACES_CONFIG_FILE, then applies environment variables and validates
// the result. Environment variables always win over the file.
//
// # Configuration Structure
//
// Server settings:
//
//	WORKSPACES_HOST="0.0.0.0"
//	WORKSPACES_PORT="8080"
//	WORKSPACES_HEALTH_PORT="9090"
//	WORKSPACES_READ_TIMEOUT="15s"
//	WORKSPACES_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	WORKSPACES_STORAGE_BACKEND="postgres"  # memory, filesystem, postgres, redis
//	WORKSPACES_FILESYSTEM_ROOT="/var/lib/workspaces"
//	WORKSPACES_POSTGRES_URL="postgres://localhost/workspaces"
//	WORKSPACES_POSTGRES_MAX_CONNS="20"
//	WORKSPACES_REDIS_URL="redis://localhost:6379"
//
// Persistence settings:
//
//	WORKSPACES_PERSISTENCE_ENABLED="true"
//	WORKSPACES_OUTBOX_QUEUE_SIZE="1024"
//	WORKSPACES_OUTBOX_MAX_ATTEMPTS="5"
//
// Invite settings:
//
//	WORKSPACES_INVITE_TTL="168h"
//	WORKSPACES_INVITE_SWEEP_SCHEDULE="@every 15m"
//	WORKSPACES_INVITE_BASE_URL="https://app.example.com/invite"
//
// Key settings:
//
//	WORKSPACES_KEYS_SEALED_FILE="/etc/workspaces/keys.json"
//	WORKSPACES_KEYS_IDENTITY_FILE="/etc/workspaces/identity.txt"
//	WORKSPACES_KEYS_CACHE_TTL="5m"
//	WORKSPACES_KEYS_STATIC="openai=sk-dev"  # development only
//
// Search settings:
//
//	WORKSPACES_SEARCH_DEFAULT_LIMIT="20"
//	WORKSPACES_SEARCH_MAX_LIMIT="100"
//	WORKSPACES_SEARCH_CONCURRENCY="8"
//
// Observability settings:
//
//	WORKSPACES_LOG_LEVEL="info"  # debug, info, warn, error
//	WORKSPACES_METRICS_ENABLED="true"
//	WORKSPACES_OTEL_ENABLED="true"
//	WORKSPACES_OTEL_ENDPOINT="otel-collector:4317"
//
// The YAML file uses the same sections:
//
//	server:
//	  port: "8080"
//	storage:
//	  backend: postgres
//	  postgres_url: postgres://localhost/workspaces
//	invites:
//	  ttl: 168h
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Backend)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
