package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"order_engine/internal/domain"
)

const minimalConfig = `
venues:
  - name: "Raydium"
    base_price: 100
  - name: "Meteora"
    base_price: 100
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Queue.Concurrency != 10 {
		t.Errorf("Expected default concurrency 10, got %d", cfg.Queue.Concurrency)
	}
	if cfg.Queue.Attempts != 3 || cfg.Queue.Backoff.Type != "exponential" || cfg.Queue.Backoff.DelayMS != 500 {
		t.Errorf("Unexpected queue defaults: %+v", cfg.Queue)
	}
	if !cfg.Queue.RetriesNotFound() {
		t.Error("Expected retry_not_found to default to true")
	}
	if cfg.Queue.SuppressIntermediateFailures {
		t.Error("Expected suppress_intermediate_failures to default to false")
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Expected default addr :3000, got %s", cfg.Server.Addr)
	}
	if len(cfg.Venues) != 2 || cfg.Venues[0].Name != "Raydium" {
		t.Errorf("Venue order not preserved: %+v", cfg.Venues)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("QUEUE_CONCURRENCY", "1")
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/orders")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Queue.Concurrency != 1 {
		t.Errorf("Expected concurrency 1, got %d", cfg.Queue.Concurrency)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Queue.Backend != "redis" || cfg.Database.Driver != "postgres" {
		t.Errorf("Expected redis/postgres backends, got %s/%s", cfg.Queue.Backend, cfg.Database.Driver)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no venues", "queue:\n  concurrency: 2\n", "venues"},
		{"duplicate venue", "venues:\n  - {name: A, base_price: 1}\n  - {name: A, base_price: 1}\n", "venues[1].name"},
		{"bad backoff", minimalConfig + "queue:\n  backoff:\n    type: linear\n", "queue.backoff.type"},
		{"bad backend", minimalConfig + "queue:\n  backend: kafka\n", "queue.backend"},
		{"bad failure rate", "venues:\n  - {name: A, base_price: 1, failure_rate: 2}\n", "venues[0].failure_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("shipped config must load: %v", err)
	}
	if cfg.Venues[0].Name != "Raydium" || cfg.Venues[1].Name != "Meteora" {
		t.Errorf("unexpected venues: %+v", cfg.Venues)
	}
}
