package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wasm-bridge/battle"
	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.SmallBufferSize != 10240 || cfg.LargeBufferSize != 102400 {
		t.Errorf("tiers = %d/%d", cfg.SmallBufferSize, cfg.LargeBufferSize)
	}
	if cfg.Battle != battle.DefaultSettings() || cfg.Level() != logging.LevelInfo {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.toml")
	doc := `
small_buffer_size = 2048
log_level = "debug"
resource_dir = "/srv/res"

[battle]
initial_health = 500
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := ApplyFile(&cfg, path); err != nil {
		t.Fatal(err)
	}
	if err := ApplyEnv(&cfg, map[string]string{
		"WASM_BRIDGE_LOG_LEVEL":         "warn",
		"WASM_BRIDGE_BATTLE_MAX_DAMAGE": "70",
		"WASM_BRIDGE_SEED":              "99",
		"LOG_LEVEL":                     "error",
	}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file overrides default", cfg.SmallBufferSize, uint32(2048)},
		{"default kept", cfg.LargeBufferSize, uint32(DefaultLargeBufferSize)},
		{"env overrides file", cfg.LogLevel, "warn"},
		{"file nested", cfg.Battle.InitialHealth, int32(500)},
		{"env nested", cfg.Battle.MaxDamage, int32(70)},
		{"nested default kept", cfg.Battle.MinDamage, int32(20)},
		{"env scalar", cfg.Seed, uint64(99)},
		{"file string", cfg.ResourceDir, "/srv/res"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestApplyErrors(t *testing.T) {
	cfg := Default()
	if err := ApplyFile(&cfg, filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, bridgeerrors.ErrNotFound) {
		t.Errorf("missing file = %v", err)
	}
	if err := ApplyTOML(&cfg, []byte("small_buffer_size = \"big\"")); !errors.Is(err, bridgeerrors.ErrInvalidFormat) {
		t.Errorf("bad toml = %v", err)
	}
	if err := ApplyEnv(&cfg, map[string]string{"WASM_BRIDGE_SEED": "not-a-number"}); !errors.Is(err, bridgeerrors.ErrInvalidFormat) {
		t.Errorf("bad env = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero small tier", func(c *Config) { c.SmallBufferSize = 0 }},
		{"large below small", func(c *Config) { c.LargeBufferSize = c.SmallBufferSize - 1 }},
		{"negative pool", func(c *Config) { c.BytePoolSize = -1 }},
		{"watch without dir", func(c *Config) { c.WatchResources = true }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad battle", func(c *Config) { c.Battle.MaxDamage = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, bridgeerrors.ErrInvalidArgument) {
				t.Errorf("Validate = %v, want invalid_argument", err)
			}
		})
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("WASM_BRIDGE_LARGE_BUFFER_SIZE", "204800")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LargeBufferSize != 204800 {
		t.Errorf("LargeBufferSize = %d", cfg.LargeBufferSize)
	}
}
