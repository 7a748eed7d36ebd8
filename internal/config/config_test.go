package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "techpulse.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.Retries != 2 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
database:
  driver: postgres
  dsn: postgres://u:p@db/techpulse?sslmode=disable
fetch:
  timeout: 5s
  workers: 4
scheduler:
  cron: "0 * * * *"
timezone: Europe/Berlin
`)
	t.Setenv("TECHPULSE_WORKERS", "6")
	t.Setenv("TECHPULSE_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Fetch.Timeout != 5*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Fetch.Workers != 6 || cfg.Scheduler.RedisAddr != "redis:6379" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Fetch.Retries != 2 || cfg.Server.Addr != ":8080" {
		t.Fatalf("unset keys lost their defaults: %+v", cfg)
	}
	if cfg.Scheduler.Cron != "0 * * * *" {
		t.Fatalf("cron = %q", cfg.Scheduler.Cron)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing explicit file accepted")
	}
	if _, err := Load(writeFile(t, "database: [")); err == nil {
		t.Fatal("bad yaml accepted")
	}
	if _, err := Load(writeFile(t, "database:\n  driver: mysql\n")); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Load(writeFile(t, "timezone: Mars/Olympus\n")); err == nil {
		t.Fatal("unknown timezone accepted")
	}

	t.Setenv("TECHPULSE_FETCH_TIMEOUT", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("bad duration accepted")
	}
}
