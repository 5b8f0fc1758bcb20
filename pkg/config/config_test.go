package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "master")
	t.Setenv("JWT_SECRET", "jwt-signing-key")
	t.Setenv("BROKER_KIND", "")
	t.Setenv("LOOKUP_CACHE_TTL", "")
	t.Setenv("KEYWORD_MAPPING_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BrokerKind != BrokerAMQP || cfg.EventStore != "signal_stream" || cfg.RoutingKey != "signal_stream" {
		t.Errorf("broker defaults = %q/%q/%q", cfg.BrokerKind, cfg.EventStore, cfg.RoutingKey)
	}
	if cfg.LookupCacheTTL != 30*time.Second {
		t.Errorf("LookupCacheTTL = %v, want 30s", cfg.LookupCacheTTL)
	}
	if cfg.DefaultKeywords.StopLoss == nil || *cfg.DefaultKeywords.StopLoss != "sl" {
		t.Errorf("default stop loss keyword = %v", cfg.DefaultKeywords.StopLoss)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "master")
	t.Setenv("BROKER_KIND", "Redis")
	t.Setenv("BROKER_DURABLE", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOOKUP_CACHE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BrokerKind != BrokerRedis || cfg.BrokerDurable || cfg.RedisDB != 3 || cfg.LookupCacheTTL != 5*time.Minute {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadInvalidTTL(t *testing.T) {
	t.Setenv("LOOKUP_CACHE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid LOOKUP_CACHE_TTL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{SecretKey: "s", JWTSecret: "j", BrokerKind: BrokerMemory, EventStore: "e", RoutingKey: "r"}, false},
		{"missing secret", Config{JWTSecret: "j", BrokerKind: BrokerMemory, EventStore: "e", RoutingKey: "r"}, true},
		{"missing jwt secret", Config{SecretKey: "s", BrokerKind: BrokerMemory, EventStore: "e", RoutingKey: "r"}, true},
		{"placeholder jwt secret", Config{SecretKey: "s", JWTSecret: "dev-secret", BrokerKind: BrokerMemory, EventStore: "e", RoutingKey: "r"}, true},
		{"unknown broker", Config{SecretKey: "s", JWTSecret: "j", BrokerKind: "kafka", EventStore: "e", RoutingKey: "r"}, true},
		{"empty store", Config{SecretKey: "s", JWTSecret: "j", BrokerKind: BrokerAMQP, RoutingKey: "r"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	content := "stop_loss: stop\ntake_profit: target\nentry_price: null\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	k, err := LoadKeywords(path)
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	if k.StopLoss == nil || *k.StopLoss != "stop" || k.TakeProfit == nil || *k.TakeProfit != "target" {
		t.Errorf("keywords = %+v", k)
	}
	if k.EntryPrice != nil {
		t.Errorf("EntryPrice = %q, want nil", *k.EntryPrice)
	}

	t.Setenv("KEYWORD_MAPPING_FILE", path)
	t.Setenv("LOOKUP_CACHE_TTL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultKeywords.StopLoss == nil || *cfg.DefaultKeywords.StopLoss != "stop" {
		t.Errorf("Load did not use the keyword file: %+v", cfg.DefaultKeywords)
	}
}
