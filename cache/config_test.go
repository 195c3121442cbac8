package cache

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.Codec != "json" {
		t.Errorf("Codec = %q, want json", cfg.Codec)
	}
	if cfg.OpTimeout != DefaultOpTimeout {
		t.Errorf("OpTimeout = %v, want %v", cfg.OpTimeout, DefaultOpTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "msgpack", mutate: func(c *Config) { c.Codec = "msgpack" }},
		{name: "unknown codec", mutate: func(c *Config) { c.Codec = "xml" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.OpTimeout = -time.Second }, wantErr: true},
		{name: "internal validation", mutate: func(c *Config) { c.Capacity = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_MemoryBackendRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = "msgpack"

	layer, err := New(cfg, StoreOptions{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if layer.Codec().Name() != "msgpack" {
		t.Errorf("Codec() = %q, want msgpack", layer.Codec().Name())
	}

	ctx := context.Background()
	if err := Save(ctx, layer, "summary:system", sample{Name: "all", Count: 9}, time.Hour); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res := Load[sample](ctx, layer, "summary:system")
	if !res.Hit() || res.Value.Count != 9 {
		t.Errorf("Load() = %+v", res)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memcached"

	if _, err := New(cfg, StoreOptions{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
