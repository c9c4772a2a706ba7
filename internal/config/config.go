package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config del servicio. Todo sale de variables de entorno; los opcionales
// vacíos activan el fallback en memoria o local correspondiente.
type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`

	// DB_DSN vacío = repos en memoria.
	DBDSN              string        `env:"DB_DSN"`
	DBConnectAttempts  int           `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`
	DBReconnectDelay   time.Duration `env:"DB_RECONNECT_DELAY" envDefault:"5s"`
	DBSuperviseEvery   time.Duration `env:"DB_SUPERVISE_INTERVAL" envDefault:"15s"`
	DBMigrateOnStartup bool          `env:"DB_MIGRATE" envDefault:"true"`

	// REDIS_URL vacío = cola de reconciliación en memoria.
	RedisURL string `env:"REDIS_URL"`
	RedisKey string `env:"REDIS_AUDIT_KEY" envDefault:"odontolegal:audit:pending"`

	// JWT_SECRET vacío = modo dev (headers X-Debug-User-*).
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	UploadDir          string `env:"UPLOAD_DIR" envDefault:"uploads"`
	GCSBucket          string `env:"GCS_BUCKET"`
	GCSPrefix          string `env:"GCS_PREFIX" envDefault:"evidence"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`

	RendererURL     string        `env:"RENDERER_URL"`
	RendererAPIKey  string        `env:"RENDERER_API_KEY"`
	RendererTimeout time.Duration `env:"RENDERER_TIMEOUT" envDefault:"20s"`

	// 0 = sin reconciliación periódica (sólo el endpoint admin).
	AuditReconcileEvery time.Duration `env:"AUDIT_RECONCILE_INTERVAL" envDefault:"1m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	AppName   string `env:"APP_NAME" envDefault:"odontolegal"`
}

// Load lee la configuración del entorno y la valida.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom es Load con un entorno explícito (tests).
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: PORT is empty")
	}
	if c.DBDSN != "" && c.DBConnectAttempts <= 0 {
		return fmt.Errorf("config: DB_CONNECT_ATTEMPTS must be > 0")
	}
	if c.DBSuperviseEvery <= 0 {
		return fmt.Errorf("config: DB_SUPERVISE_INTERVAL must be > 0")
	}
	if c.GCSBucket == "" && strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("config: UPLOAD_DIR or GCS_BUCKET required")
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
