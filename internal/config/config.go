// Package config loads gateway configuration from the environment,
// following the env-var-with-defaults convention used across the
// rest of the gateway's tooling.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable setting the gateway reads at
// startup. Nothing here is reloaded at runtime; a restart is required
// to pick up changes.
type Config struct {
	// ListenAddr is the address the ingress JSON-RPC-over-HTTP surface binds to.
	ListenAddr string

	// DirectoryURL is the base URL of the discovery service. Empty means
	// standalone mode: the gateway serves only the static backend table.
	DirectoryURL string
	// DirectoryTimeout bounds each register/discover/deregister/health call.
	DirectoryTimeout time.Duration
	// DirectoryCacheTTL bounds how long a successful discover result may be
	// reused to answer a burst of concurrent routing-table reads.
	DirectoryCacheTTL time.Duration

	// RoutingRefreshInterval is the cadence of the periodic routing table
	// rebuild (discover, or fall back to the static table).
	RoutingRefreshInterval time.Duration

	// ForwarderTimeout bounds a single downstream JSON-RPC call.
	ForwarderTimeout time.Duration
	// ForwarderMaxRetries bounds retry attempts for 5xx/timeout/rate-limit.
	ForwarderMaxRetries int

	// RedisAddr is the address of the Redis instance backing the event bus.
	// Empty disables the bus: publish/subscribe become no-ops.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChannelPrefix string

	// IngestBufferCapacity is the ring buffer's hard cap (spec: 10000).
	IngestBufferCapacity int
	// IngestBufferEvictTo is the size the buffer is trimmed to on overflow (spec: 5000).
	IngestBufferEvictTo int

	// IncidentHistoryCapacity bounds the number of RCA-matched incidents
	// retained for infer_get_incident_timeline, oldest dropped first.
	IncidentHistoryCapacity int

	// CorrelationWindowDefault is used when a caller omits window_seconds.
	CorrelationWindowDefault time.Duration

	// AnomalySensitivity biases the anomaly confidence score (spec default 0.90).
	AnomalySensitivity float64

	// MongoURI, when non-empty, persists audit entries to MongoDB instead
	// of the in-memory store.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeout    time.Duration

	// ShutdownGrace bounds the time allowed for in-flight work to drain
	// and for deregistration to complete before the process exits.
	ShutdownGrace time.Duration

	// Debug enables verbose/pretty logging via clue.
	Debug bool
}

// FromEnv loads a Config from the process environment, applying the
// documented defaults for anything unset.
func FromEnv() Config {
	return Config{
		ListenAddr: envOr("MIGA_GATEWAY_LISTEN_ADDR", ":8000"),

		DirectoryURL:      envOr("MIGA_DIRECTORY_URL", ""),
		DirectoryTimeout:  envDurationOr("MIGA_DIRECTORY_TIMEOUT", 5*time.Second),
		DirectoryCacheTTL: envDurationOr("MIGA_DIRECTORY_CACHE_TTL", 30*time.Second),

		RoutingRefreshInterval: envDurationOr("MIGA_ROUTING_REFRESH_INTERVAL", 60*time.Second),

		ForwarderTimeout:    envDurationOr("MIGA_FORWARDER_TIMEOUT", 60*time.Second),
		ForwarderMaxRetries: envIntOr("MIGA_FORWARDER_MAX_RETRIES", 3),

		RedisAddr:     envOr("MIGA_REDIS_ADDR", ""),
		RedisPassword: envOr("MIGA_REDIS_PASSWORD", ""),
		RedisDB:       envIntOr("MIGA_REDIS_DB", 0),
		ChannelPrefix: envOr("MIGA_CHANNEL_PREFIX", "miga"),

		IngestBufferCapacity: envIntOr("MIGA_INGEST_BUFFER_CAPACITY", 10000),
		IngestBufferEvictTo:  envIntOr("MIGA_INGEST_BUFFER_EVICT_TO", 5000),

		IncidentHistoryCapacity: envIntOr("MIGA_INCIDENT_HISTORY_CAPACITY", 1000),

		CorrelationWindowDefault: envDurationOr("MIGA_CORRELATION_WINDOW_DEFAULT", 300*time.Second),

		AnomalySensitivity: envFloatOr("MIGA_ANOMALY_SENSITIVITY", 0.90),

		MongoURI:        envOr("MIGA_MONGO_URI", ""),
		MongoDatabase:   envOr("MIGA_MONGO_DATABASE", "miga"),
		MongoCollection: envOr("MIGA_MONGO_COLLECTION", "audit_log"),
		MongoTimeout:    envDurationOr("MIGA_MONGO_TIMEOUT", 5*time.Second),

		ShutdownGrace: envDurationOr("MIGA_SHUTDOWN_GRACE", 5*time.Second),

		Debug: envBoolOr("MIGA_DEBUG", false),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
