package config_test

import (
	"testing"
	"time"

	"github.com/iho/paymentsengine/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StoreDriver != "bolt" {
		t.Fatalf("expected default store driver bolt, got %q", cfg.StoreDriver)
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected snapshot cache disabled by default, got %q", cfg.RedisURL)
	}

	if cfg.MailboxSize != 1024 || cfg.MaxActiveClients != 2048 {
		t.Fatalf("unexpected dispatcher defaults: mailbox=%d max=%d", cfg.MailboxSize, cfg.MaxActiveClients)
	}

	if cfg.FreezePolicy != "account" {
		t.Fatalf("expected default freeze policy account, got %q", cfg.FreezePolicy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("SNAPSHOT_CACHE_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MAX_ACTIVE_CLIENTS", "16")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StoreDriver != "postgres" || cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected postgres settings, got driver=%s url=%s", cfg.StoreDriver, cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" || cfg.SnapshotCacheTTL != 5*time.Minute {
		t.Fatalf("expected cache overrides, got url=%s ttl=%s", cfg.RedisURL, cfg.SnapshotCacheTTL)
	}

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("expected two kafka brokers, got %v", cfg.KafkaBrokers)
	}

	if cfg.MaxActiveClients != 16 {
		t.Fatalf("expected max active clients override, got %d", cfg.MaxActiveClients)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("SNAPSHOT_CACHE_TTL", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
