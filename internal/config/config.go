package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	// SchedulerEnabled turns the in-process billing ticker on for `serve`.
	SchedulerEnabled bool

	OTLPEndpoint string
	LogLevel     string
	LogFormat    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Redis     RedisConfig
	Blob      BlobConfig
	RateLimit RateLimitConfig

	// BillingConfigPath points at the directory holding billing.yml.
	BillingConfigPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis endpoint was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig throttles the expensive admin triggers (billing runs,
// simulations, exports). It needs Redis.
type RateLimitConfig struct {
	AdminRate  float64
	AdminBurst int
}

type BlobConfig struct {
	Provider        string
	LocalRoot       string
	PublicBaseURL   string
	GCSBucket       string
	GCSCredentials  string
	GCSObjectPrefix string
}

const (
	BlobProviderLocal = "local"
	BlobProviderGCS   = "gcs"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "escolar"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("SNOWFLAKE_NODE", 1),
		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", ""),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenv("LOG_FORMAT", "json")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "escolar"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "escolar.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Blob: BlobConfig{
			Provider:        strings.ToLower(getenv("BLOB_PROVIDER", BlobProviderLocal)),
			LocalRoot:       getenv("BLOB_LOCAL_ROOT", "./uploads"),
			PublicBaseURL:   strings.TrimRight(getenv("BLOB_PUBLIC_BASE_URL", "/uploads"), "/"),
			GCSBucket:       strings.TrimSpace(getenv("GCS_BUCKET", "")),
			GCSCredentials:  strings.TrimSpace(getenv("GCS_CREDENTIALS_JSON", "")),
			GCSObjectPrefix: strings.Trim(getenv("GCS_OBJECT_PREFIX", "escolar"), "/"),
		},
		RateLimit: RateLimitConfig{
			AdminRate:  getenvFloat("ADMIN_RATE_LIMIT", 0.2),
			AdminBurst: int(getenvInt64("ADMIN_RATE_BURST", 3)),
		},
		BillingConfigPath: getenv("BILLING_CONFIG_PATH", "."),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewBillingConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
