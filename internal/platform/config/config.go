package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "regionsync/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// AdminToken is accepted on X-Admin-Token when no JWT key is configured.
	AdminToken string
}

// RedisConfig configures the optional Redis client backing distributed lanes.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the sync message transport.
type KafkaConfig struct {
	Brokers         []string
	Topic           string
	DeadLetterTopic string
	ConsumerGroup   string
	ClientID        string
	Partitions      int32
	Replication     int16
	// HandlerRetries bounds in-process retries of a failed batch before the
	// consumer gives up and returns.
	HandlerRetries uint64
}

// SyncConfig is the orchestrator and conflict resolver tuning.
type SyncConfig struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	DeferDelay          time.Duration
	Workers             int
	LockTTL             time.Duration
	ConflictMaxAttempts int
	ConflictBaseDelay   time.Duration
	ExposureCacheTTL    time.Duration
	BreakerThreshold    int
	BreakerCooldown     time.Duration
	// PolicySource is one of "file", "postgres" or "defaults".
	PolicySource string
}

// Config is the full process configuration.
type Config struct {
	Server       Server
	Redis        RedisConfig
	Kafka        KafkaConfig
	Sync         SyncConfig
	TopologyFile string
	// LocalRegion names the region this process emits changes for. Empty
	// disables manual emission through the operator API.
	LocalRegion string
	LogLevel    string
	LogFormat   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs envErrors
	cfg := Config{
		Server: Server{
			Addr:          getenv("REGIONSYNC_ADDR", ":8080"),
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:     getenv("JWT_ISSUER", "regionsync"),
			JWTAudience:   getenv("JWT_AUDIENCE", "regionsync-admin"),
			AdminToken:    os.Getenv("ADMIN_TOKEN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     errs.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: errs.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  errs.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  errs.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: errs.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         platformstrings.SplitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:           getenv("KAFKA_TOPIC", "regionsync.events"),
			DeadLetterTopic: getenv("KAFKA_DLQ_TOPIC", "regionsync.dead-letters"),
			ConsumerGroup:   getenv("KAFKA_CONSUMER_GROUP", "regionsync"),
			ClientID:        getenv("KAFKA_CLIENT_ID", "regionsync"),
			Partitions:      int32(errs.int("KAFKA_PARTITIONS", 12)),
			Replication:     int16(errs.int("KAFKA_REPLICATION", 1)),
			HandlerRetries:  uint64(errs.int("KAFKA_HANDLER_RETRIES", 5)),
		},
		Sync: SyncConfig{
			MaxAttempts:         errs.int("SYNC_MAX_ATTEMPTS", 5),
			BaseDelay:           errs.duration("SYNC_BASE_DELAY", 30*time.Second),
			MaxDelay:            errs.duration("SYNC_MAX_DELAY", 15*time.Minute),
			DeferDelay:          errs.duration("SYNC_DEFER_DELAY", time.Second),
			Workers:             errs.int("SYNC_WORKERS", 8),
			LockTTL:             errs.duration("SYNC_LOCK_TTL", 30*time.Second),
			ConflictMaxAttempts: errs.int("CONFLICT_MAX_ATTEMPTS", 3),
			ConflictBaseDelay:   errs.duration("CONFLICT_BASE_DELAY", 25*time.Millisecond),
			ExposureCacheTTL:    errs.duration("EXPOSURE_CACHE_TTL", 5*time.Minute),
			BreakerThreshold:    errs.int("REGION_BREAKER_THRESHOLD", 5),
			BreakerCooldown:     errs.duration("REGION_BREAKER_COOLDOWN", 10*time.Second),
			PolicySource:        getenv("POLICY_SOURCE", "file"),
		},
		TopologyFile: getenv("REGIONSYNC_TOPOLOGY_FILE", "topology.yaml"),
		LocalRegion:  os.Getenv("REGIONSYNC_REGION"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
	}
	if len(errs) > 0 {
		return Config{}, errs
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c Config) Validate() error {
	switch {
	case c.Sync.MaxAttempts < 1:
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1")
	case c.Sync.Workers < 1:
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	case c.Sync.BaseDelay <= 0 || c.Sync.MaxDelay < c.Sync.BaseDelay:
		return fmt.Errorf("SYNC_MAX_DELAY must be at least SYNC_BASE_DELAY")
	case len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("KAFKA_BROKERS is required")
	case c.Kafka.Topic == "":
		return fmt.Errorf("KAFKA_TOPIC is required")
	}
	switch c.Sync.PolicySource {
	case "file", "postgres", "defaults":
	default:
		return fmt.Errorf("POLICY_SOURCE %q is not one of file, postgres, defaults", c.Sync.PolicySource)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type envErrors []string

func (e envErrors) Error() string {
	return "invalid environment: " + strings.Join(e, "; ")
}

func (e *envErrors) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*e = append(*e, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (e *envErrors) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*e = append(*e, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}
