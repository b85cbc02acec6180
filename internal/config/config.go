package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dtroode/vpnbot/internal/model"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains bot configuration parameters.
type Config struct {
	LogLevel  int       `env:"LOG_LEVEL" envDefault:"0"`
	Telegram  Telegram  `envPrefix:"TELEGRAM_"`
	Database  Database  `envPrefix:"DATABASE_"`
	VLESS     VLESS     `envPrefix:"VLESS_"`
	Provision Provision `envPrefix:"VLESS_PROVISION_"`
	Storage   Storage   `envPrefix:"MINIO_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	GRPC      GRPC      `envPrefix:"GRPC_"`
	Metrics   Metrics   `envPrefix:"METRICS_"`
}

// Telegram contains Bot API parameters.
type Telegram struct {
	BotToken      string `env:"BOT_TOKEN"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	UpdateTimeout int    `env:"UPDATE_TIMEOUT" envDefault:"60"`
}

// Database contains database connection parameters.
// An empty DSN selects in-memory stores.
type Database struct {
	DSN string `env:"DSN"`
}

// VLESS contains the defaults new profiles are built from.
type VLESS struct {
	Host          string   `env:"HOST" envDefault:"example.com"`
	Port          int      `env:"PORT" envDefault:"443"`
	Transport     string   `env:"TRANSPORT" envDefault:"ws"`
	Security      string   `env:"SECURITY" envDefault:"tls"`
	Flow          string   `env:"FLOW"`
	WSPath        string   `env:"WS_PATH" envDefault:"/facevpn"`
	SNI           string   `env:"SNI"`
	LabelTemplate string   `env:"LABEL_TEMPLATE" envDefault:"FaceVPN {tg_id}"`
	ALPN          []string `env:"ALPN" envSeparator:"," envDefault:"h2,http/1.1"`
	UUIDNamespace string   `env:"UUID_NAMESPACE" envDefault:"facevpn"`
}

// Provision contains remote provisioning authority parameters.
type Provision struct {
	URL              string        `env:"URL"`
	Token            string        `env:"TOKEN"`
	JWTSecret        string        `env:"JWT_SECRET"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"20s"`
	MaxResponseBytes int64         `env:"MAX_RESPONSE_BYTES" envDefault:"1048576"`
}

// Storage contains object storage parameters for the diagnostics archive.
type Storage struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"vpnbot-diagnostics"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Redis contains parameters of the shared lock backend.
// An empty Addr selects in-process locks.
type Redis struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"30s"`
}

// GRPC contains ops gRPC server parameters.
type GRPC struct {
	Port               string `env:"PORT" envDefault:"50051"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
}

// Metrics contains the Prometheus listener parameters.
type Metrics struct {
	Addr string `env:"ADDR" envDefault:":9090"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.VLESS.Port <= 0 || c.VLESS.Port > 65535 {
		return fmt.Errorf("%w: VLESS_PORT must be in 1..65535, got %d", ErrInvalidConfig, c.VLESS.Port)
	}
	if _, ok := model.ParseTransport(c.VLESS.Transport); !ok {
		return fmt.Errorf("%w: unknown VLESS_TRANSPORT %q", ErrInvalidConfig, c.VLESS.Transport)
	}
	if _, ok := model.ParseSecurity(c.VLESS.Security); !ok {
		return fmt.Errorf("%w: unknown VLESS_SECURITY %q", ErrInvalidConfig, c.VLESS.Security)
	}
	if c.Provision.Timeout <= 0 {
		return fmt.Errorf("%w: VLESS_PROVISION_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

// ServerName returns the configured SNI, falling back to the host.
func (v VLESS) ServerName() string {
	if v.SNI != "" {
		return v.SNI
	}
	return v.Host
}
