package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Storage struct {
	Backend string `yaml:"backend"` // postgres|memory
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Auth struct {
	Secret    string `yaml:"secret"` // HS256, токены выпускает auth-сервис
	Issuer    string `yaml:"issuer"`
	ClockSkew string `yaml:"clockSkew"` // duration, default 30s
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|stage|prod
	Service   string `yaml:"service"` // chat-service
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend"` // std|zap
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type WS struct {
	PingEvery string `yaml:"pingEvery"` // duration, default 15s
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Logging  Logging  `yaml:"logging"`
	WS       WS       `yaml:"ws"`
}

func LoadConfig() (*Config, error) {
	// .env — только для локальной разработки, отсутствие файла не ошибка
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if dsn := os.Getenv("CHAT_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if secret := os.Getenv("CHAT_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "postgres"
	}
	if c.Storage.Backend != "postgres" && c.Storage.Backend != "memory" {
		return errors.New("storage.backend must be postgres or memory")
	}
	if c.Storage.Backend == "postgres" && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "unihub-auth"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

// ClockSkewDuration и PingEveryDuration парсят строковые таймауты с дефолтами.
func (c *Config) ClockSkewDuration() time.Duration {
	return parseDurationOr(30*time.Second, c.Auth.ClockSkew)
}

func (c *Config) PingEveryDuration() time.Duration {
	return parseDurationOr(15*time.Second, c.WS.PingEvery)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
