package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("CHAT_POSTGRES_DSN", "")
	t.Setenv("CHAT_AUTH_SECRET", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8081"
storage:
  backend: memory
auth:
  secret: "s3cret"
`)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Auth.Issuer != "unihub-auth" {
		t.Fatalf("default issuer = %q", cfg.Auth.Issuer)
	}
	if cfg.Logging.Service != "chat-service" || cfg.Logging.Env != "dev" {
		t.Fatalf("logging defaults: %+v", cfg.Logging)
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "*" {
		t.Fatalf("origins default: %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.ClockSkewDuration() != 30*time.Second {
		t.Fatalf("clock skew default: %v", cfg.ClockSkewDuration())
	}
	if cfg.PingEveryDuration() != 15*time.Second {
		t.Fatalf("ping default: %v", cfg.PingEveryDuration())
	}
}

func TestLoadConfigValidation(t *testing.T) {
	writeConfig(t, `
http:
  addr: ""
auth:
  secret: "s3cret"
`)
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("missing addr accepted")
	}

	writeConfig(t, `
http:
  addr: ":8081"
storage:
  backend: postgres
auth:
  secret: "s3cret"
`)
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("postgres backend without dsn accepted")
	}

	writeConfig(t, `
http:
  addr: ":8081"
storage:
  backend: cassandra
postgres:
  dsn: "x"
auth:
  secret: "s3cret"
`)
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8081"
storage:
  backend: postgres
postgres:
  dsn: "postgres://file"
auth:
  secret: "from-file"
`)
	t.Setenv("CHAT_POSTGRES_DSN", "postgres://env")
	t.Setenv("CHAT_AUTH_SECRET", "from-env")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://env" {
		t.Fatalf("dsn override lost: %q", cfg.Postgres.DSN)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Fatalf("secret override lost: %q", cfg.Auth.Secret)
	}
}

func TestDurationFallbacks(t *testing.T) {
	writeConfig(t, `
http:
  addr: ":8081"
storage:
  backend: memory
auth:
  secret: "s3cret"
  clockSkew: "bogus"
ws:
  pingEvery: "2s"
`)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClockSkewDuration() != 30*time.Second {
		t.Fatalf("bogus skew should fall back: %v", cfg.ClockSkewDuration())
	}
	if cfg.PingEveryDuration() != 2*time.Second {
		t.Fatalf("pingEvery = %v, want 2s", cfg.PingEveryDuration())
	}
}
