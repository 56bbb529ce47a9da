package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env      string `env:"ENV" env-required:"true"`
	HTTP     HTTPConfig
	Postgres PostgresConfig
	JWT      JWTConfig
	Realtime RealtimeConfig
	AI       AIConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"5001"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-required:"true"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-required:"true"`
	Password       string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Database       string        `env:"POSTGRES_DATABASE" env-required:"true"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
}

type JWTConfig struct {
	Issuer     string        `env:"JWT_ISSUER" env-default:"taskforge"`
	SigningKey string        `env:"JWT_SIGNING_KEY" env-required:"true"`
	TokenTTL   time.Duration `env:"JWT_TOKEN_TTL" env-default:"168h"`
}

type RealtimeConfig struct {
	// AuthTimeout is the grace period a socket has to authenticate
	// before it is disconnected.
	AuthTimeout   time.Duration `env:"REALTIME_AUTH_TIMEOUT" env-default:"10s"`
	SendBufferLen int           `env:"REALTIME_SEND_BUFFER" env-default:"64"`
}

type AIConfig struct {
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	SummaryModel    string        `env:"GEMINI_MODEL_SUMMARY" env-default:"gemini-2.5-flash"`
	QAModel         string        `env:"GEMINI_MODEL_QA" env-default:"gemini-2.5-flash"`
	RateLimitWindow time.Duration `env:"AI_RATE_LIMIT_WINDOW" env-default:"1m"`
	RateLimitMax    int           `env:"AI_RATE_LIMIT_MAX" env-default:"15"`
}
