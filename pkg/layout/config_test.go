package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxTicks() != 125 {
		t.Fatalf("expected 125 ticks for 2s at 16ms, got %d", cfg.MaxTicks())
	}
	if cfg.ChargeStrength >= 0 {
		t.Fatalf("expected repulsive charge, got %v", cfg.ChargeStrength)
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	data := `
[layout]
tick_interval_ms = 20
max_duration_ms = 1000

[forces]
link_distance = 120
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickInterval != 20*time.Millisecond || cfg.MaxDuration != time.Second {
		t.Fatalf("unexpected timing: %s / %s", cfg.TickInterval, cfg.MaxDuration)
	}
	if cfg.LinkDistance != 120 {
		t.Fatalf("expected link distance 120, got %v", cfg.LinkDistance)
	}
	def := DefaultConfig()
	if cfg.ChargeStrength != def.ChargeStrength || cfg.AlphaDecay != def.AlphaDecay {
		t.Fatalf("expected untouched keys to keep defaults")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("[layout]\ntick_interval_ms = 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
