package config

import (
	"os"
	"strings"
	"time"
)

// Store backends selectable via LINEAGE_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DevSigningKey verifies access assertions when GATEWAY_SIGNING_KEY is
// unset. main warns when the process starts with it.
const DevSigningKey = "dev-secret-key-change-in-production"

// Server captures process-level configuration.
type Server struct {
	Addr              string
	StoreBackend      string
	DatabaseURL       string
	Redis             RedisConfig
	KafkaBrokers      []string
	AuditTopic        string
	GatewaySigningKey string
	TreeCacheTTL      time.Duration
}

// RedisConfig covers the optional tree cache backend. An empty URL means
// Redis is not configured and the service falls back to in-process caching.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("LINEAGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	backend := os.Getenv("LINEAGE_STORE")
	if backend == "" {
		backend = StoreMemory
	}

	signingKey := os.Getenv("GATEWAY_SIGNING_KEY")
	if signingKey == "" {
		signingKey = DevSigningKey
	}

	ttl := 30 * time.Second
	if raw := os.Getenv("TREE_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "lineage.graph.audit"
	}

	return Server{
		Addr:         addr,
		StoreBackend: backend,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:      brokers,
		AuditTopic:        auditTopic,
		GatewaySigningKey: signingKey,
		TreeCacheTTL:      ttl,
	}
}
