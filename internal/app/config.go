package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron"
)

const ConfigFileEnvVar = "CONFIG_FILE"

type Config struct {
	LogMode     string `koanf:"log_mode"`
	Environment string `koanf:"environment"`
	Version     string `koanf:"version"`

	HTTP      HTTPConfig      `koanf:"http"`
	DB        DBConfig        `koanf:"db"`
	SSHTunnel SSHTunnelConfig `koanf:"ssh_tunnel"`
	Vector    VectorConfig    `koanf:"vector"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Aladin    AladinConfig    `koanf:"aladin"`
	Kyobo     KyoboConfig     `koanf:"kyobo"`
	Redis     RedisConfig     `koanf:"redis"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Auth      AuthConfig      `koanf:"auth"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Otel      OtelConfig      `koanf:"otel"`
	Drift     DriftConfig     `koanf:"drift"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

type DBConfig struct {
	Driver        string        `koanf:"driver" validate:"oneof=postgres mysql sqlite"`
	DSN           string        `koanf:"dsn"`
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port" validate:"gte=0,lte=65535"`
	User          string        `koanf:"user"`
	Password      string        `koanf:"password"`
	Name          string        `koanf:"name"`
	MaxOpenConns  int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns  int           `koanf:"max_idle_conns" validate:"gte=0"`
	SlowThreshold time.Duration `koanf:"slow_threshold"`
}

type SSHTunnelConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port" validate:"gte=0,lte=65535"`
	User           string        `koanf:"user" validate:"required_with=Host"`
	PrivateKeyPath string        `koanf:"private_key_path" validate:"required_with=Host"`
	KnownHostsPath string        `koanf:"known_hosts_path"`
	Timeout        time.Duration `koanf:"timeout"`
}

type VectorConfig struct {
	Provider         string `koanf:"provider" validate:"oneof=local qdrant"`
	LocalDir         string `koanf:"local_dir"`
	Collection       string `koanf:"collection" validate:"required"`
	QdrantURL        string `koanf:"qdrant_url" validate:"omitempty,url"`
	QdrantAPIKey     string `koanf:"qdrant_api_key"`
	QdrantCollection string `koanf:"qdrant_collection"`
	QdrantVectorDim  int    `koanf:"qdrant_vector_dim" validate:"gte=0"`
	QdrantCreate     bool   `koanf:"qdrant_create"`
}

type OpenAIConfig struct {
	APIKey      string        `koanf:"api_key" validate:"required"`
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	Model       string        `koanf:"model" validate:"required"`
	EmbedModel  string        `koanf:"embed_model" validate:"required"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
}

type AladinConfig struct {
	TTBKey         string        `koanf:"ttb_key" validate:"required"`
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	Timeout        time.Duration `koanf:"timeout"`
	BestsellerSize int           `koanf:"bestseller_size" validate:"gte=1,lte=100"`
}

type KyoboConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"gte=1"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
}

type ScheduleConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Recommendation string `koanf:"recommendation" validate:"required"`
	Bestseller     string `koanf:"bestseller" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type OtelConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Headers     string  `koanf:"headers"`
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`
}

type DriftConfig struct {
	WebhookURL  string        `koanf:"webhook_url" validate:"omitempty,url"`
	MinInterval time.Duration `koanf:"min_interval"`
}

func defaultConfig() Config {
	return Config{
		LogMode:     "development",
		Environment: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Driver:        "sqlite",
			MaxOpenConns:  20,
			MaxIdleConns:  5,
			SlowThreshold: 500 * time.Millisecond,
		},
		SSHTunnel: SSHTunnelConfig{
			Port:    22,
			Timeout: 10 * time.Second,
		},
		Vector: VectorConfig{
			Provider:   "local",
			LocalDir:   "data/vectors",
			Collection: "books",
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			Timeout:     60 * time.Second,
			MaxRetries:  4,
			Temperature: 0.2,
		},
		Aladin: AladinConfig{
			BaseURL:        "http://www.aladin.co.kr/ttb/api",
			Timeout:        10 * time.Second,
			BestsellerSize: 50,
		},
		Kyobo: KyoboConfig{
			BaseURL: "https://search.kyobobook.co.kr",
			Timeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: "bookmatch:",
			TTL:    24 * time.Hour,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled:        true,
			Recommendation: "1 0 * * *",
			Bestseller:     "@monthly",
		},
		Otel: OtelConfig{
			ServiceName: "bookmatch",
			SampleRatio: 1,
		},
		Drift: DriftConfig{
			MinInterval: 10 * time.Minute,
		},
	}
}

// envKeys maps the supported environment variables onto config paths.
// Anything not listed is ignored.
var envKeys = map[string]string{
	"LOG_MODE":    "log_mode",
	"ENVIRONMENT": "environment",
	"APP_VERSION": "version",

	"HTTP_ADDR":             "http.addr",
	"HTTP_CORS_ORIGINS":     "http.cors_origins",
	"HTTP_SHUTDOWN_TIMEOUT": "http.shutdown_timeout",

	"DB_DRIVER":         "db.driver",
	"DB_DSN":            "db.dsn",
	"DB_HOST":           "db.host",
	"DB_PORT":           "db.port",
	"DB_USER":           "db.user",
	"DB_PASSWORD":       "db.password",
	"DB_NAME":           "db.name",
	"DB_MAX_OPEN_CONNS": "db.max_open_conns",
	"DB_MAX_IDLE_CONNS": "db.max_idle_conns",
	"DB_SLOW_THRESHOLD": "db.slow_threshold",

	"SSH_TUNNEL_HOST":        "ssh_tunnel.host",
	"SSH_TUNNEL_PORT":        "ssh_tunnel.port",
	"SSH_TUNNEL_USER":        "ssh_tunnel.user",
	"SSH_TUNNEL_KEY_PATH":    "ssh_tunnel.private_key_path",
	"SSH_TUNNEL_KNOWN_HOSTS": "ssh_tunnel.known_hosts_path",
	"SSH_TUNNEL_TIMEOUT":     "ssh_tunnel.timeout",

	"VECTOR_PROVIDER":          "vector.provider",
	"VECTOR_LOCAL_DIR":         "vector.local_dir",
	"VECTOR_COLLECTION":        "vector.collection",
	"QDRANT_URL":               "vector.qdrant_url",
	"QDRANT_API_KEY":           "vector.qdrant_api_key",
	"QDRANT_COLLECTION":        "vector.qdrant_collection",
	"QDRANT_VECTOR_DIM":        "vector.qdrant_vector_dim",
	"QDRANT_CREATE_COLLECTION": "vector.qdrant_create",

	"OPENAI_API_KEY":     "openai.api_key",
	"OPENAI_BASE_URL":    "openai.base_url",
	"OPENAI_MODEL":       "openai.model",
	"OPENAI_EMBED_MODEL": "openai.embed_model",
	"OPENAI_TIMEOUT":     "openai.timeout",
	"OPENAI_MAX_RETRIES": "openai.max_retries",

	"ALADIN_TTB_KEY":         "aladin.ttb_key",
	"ALADIN_BASE_URL":        "aladin.base_url",
	"ALADIN_TIMEOUT":         "aladin.timeout",
	"ALADIN_BESTSELLER_SIZE": "aladin.bestseller_size",

	"KYOBO_BASE_URL": "kyobo.base_url",
	"KYOBO_TIMEOUT":  "kyobo.timeout",

	"REDIS_ADDR":      "redis.addr",
	"REDIS_PASSWORD":  "redis.password",
	"REDIS_DB":        "redis.db",
	"REDIS_PREFIX":    "redis.prefix",
	"REDIS_CACHE_TTL": "redis.ttl",

	"BREAKER_CONSECUTIVE_FAILURES": "breaker.consecutive_failures",
	"BREAKER_OPEN_TIMEOUT":         "breaker.open_timeout",

	"SCHEDULER_ENABLED":            "schedule.enabled",
	"SCHEDULE_RECOMMENDATION_CRON": "schedule.recommendation",
	"SCHEDULE_BESTSELLER":          "schedule.bestseller",

	"API_JWT_SECRET":  "auth.jwt_secret",
	"METRICS_ENABLED": "metrics.enabled",

	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_EXPORTER_OTLP_HEADERS":  "otel.headers",
	"OTEL_EXPORTER_OTLP_INSECURE": "otel.insecure",
	"OTEL_SAMPLE_RATIO":           "otel.sample_ratio",

	"DRIFT_WEBHOOK_URL":  "drift.webhook_url",
	"DRIFT_MIN_INTERVAL": "drift.min_interval",
}

// envListKeys are config paths whose environment value is a comma
// separated list.
var envListKeys = map[string]bool{
	"http.cors_origins": true,
}

func envTransform(key, value string) (string, interface{}) {
	path, ok := envKeys[key]
	if !ok {
		return "", nil
	}
	if envListKeys[path] {
		return path, splitList(value)
	}
	return path, value
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig layers struct defaults, the optional YAML file named by
// CONFIG_FILE, then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnvVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	var errs []error
	if c.DB.Driver != "sqlite" && strings.TrimSpace(c.DB.DSN) == "" {
		if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, fmt.Errorf("db: %s needs DB_DSN or DB_HOST and DB_NAME", c.DB.Driver))
		}
	}
	if c.Vector.Provider == "qdrant" && strings.TrimSpace(c.Vector.QdrantURL) == "" {
		errs = append(errs, fmt.Errorf("vector: qdrant provider needs QDRANT_URL"))
	}
	if c.SSHTunnel.Host != "" && c.DB.Driver != "mysql" {
		errs = append(errs, fmt.Errorf("ssh_tunnel: only supported with the mysql driver"))
	}
	for name, spec := range map[string]string{
		"schedule.recommendation": c.Schedule.Recommendation,
		"schedule.bestseller":     c.Schedule.Bestseller,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
