package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	OpenAI       OpenAIConfig
	Chatbot      ChatbotConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PHARMSTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"PHARMSTOCK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PHARMSTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PHARMSTOCK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PHARMSTOCK_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"PHARMSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHARMSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHARMSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHARMSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PHARMSTOCK_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"PHARMSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHARMSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHARMSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHARMSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHARMSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PHARMSTOCK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PHARMSTOCK_JWT_ISSUER" default:"pharmstock"`
	ExpirationMinutes int    `envconfig:"PHARMSTOCK_JWT_EXPIRATION_MINUTES" default:"720"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PHARMSTOCK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PHARMSTOCK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PHARMSTOCK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PHARMSTOCK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PHARMSTOCK_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PHARMSTOCK_AUTO_MIGRATE" default:"false"`
}

type OpenAIConfig struct {
	APIKey string `envconfig:"PHARMSTOCK_OPENAI_API_KEY"`
	Model  string `envconfig:"PHARMSTOCK_OPENAI_MODEL" default:"gpt-4o-mini"`
}

type ChatbotConfig struct {
	StatementTimeout time.Duration `envconfig:"PHARMSTOCK_CHATBOT_STATEMENT_TIMEOUT" default:"5s"`
	MaxRows          int           `envconfig:"PHARMSTOCK_CHATBOT_MAX_ROWS" default:"20"`
	HistoryTTL       time.Duration `envconfig:"PHARMSTOCK_CHATBOT_HISTORY_TTL" default:"24h"`
	HistoryMaxTurns  int           `envconfig:"PHARMSTOCK_CHATBOT_HISTORY_MAX_TURNS" default:"10"`
}
