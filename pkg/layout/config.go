package layout

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the simulation constants. The defaults reproduce a d3 force
// setup with link distance 80, link strength 0.3 and charge -180.
type Config struct {
	TickInterval time.Duration
	MaxDuration  time.Duration

	AlphaStart      float64
	AlphaMin        float64
	AlphaDecay      float64
	AlphaTarget     float64
	DragAlphaTarget float64
	VelocityDecay   float64

	LinkDistance float64
	LinkStrength float64

	ChargeStrength    float64
	ChargeDistanceMin float64
	// ChargeDistanceMax <= 0 means unbounded.
	ChargeDistanceMax float64

	CenterStrength float64

	CollideRadius   float64
	PrimaryRadius   float64
	CollideStrength float64

	// RingFraction of min(width, height) is the radius of the initial ring.
	RingFraction float64
	Seed         uint64
}

func DefaultConfig() Config {
	return Config{
		TickInterval: 16 * time.Millisecond,
		MaxDuration:  2 * time.Second,

		AlphaStart:      1,
		AlphaMin:        0.001,
		AlphaDecay:      1 - math.Pow(0.001, 1.0/300),
		AlphaTarget:     0,
		DragAlphaTarget: 0.3,
		VelocityDecay:   0.4,

		LinkDistance: 80,
		LinkStrength: 0.3,

		ChargeStrength:    -180,
		ChargeDistanceMin: 1,
		ChargeDistanceMax: 0,

		CenterStrength: 1,

		CollideRadius:   14,
		PrimaryRadius:   28,
		CollideStrength: 1,

		RingFraction: 1.0 / 3,
		Seed:         1,
	}
}

// MaxTicks is the tick budget of one run.
func (c Config) MaxTicks() int {
	if c.TickInterval <= 0 {
		return 1
	}
	return max(1, int(c.MaxDuration/c.TickInterval))
}

func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive")
	case c.MaxDuration < c.TickInterval:
		return fmt.Errorf("max duration %s is shorter than tick interval %s", c.MaxDuration, c.TickInterval)
	case c.AlphaDecay <= 0 || c.AlphaDecay >= 1:
		return fmt.Errorf("alpha decay must be in (0, 1), got %v", c.AlphaDecay)
	case c.VelocityDecay < 0 || c.VelocityDecay > 1:
		return fmt.Errorf("velocity decay must be in [0, 1], got %v", c.VelocityDecay)
	case c.LinkDistance < 0 || c.CollideRadius < 0 || c.PrimaryRadius < 0:
		return fmt.Errorf("distances and radii must not be negative")
	}
	return nil
}

type fileConfig struct {
	Layout struct {
		TickIntervalMS int64 `toml:"tick_interval_ms"`
		MaxDurationMS  int64 `toml:"max_duration_ms"`

		AlphaStart      float64 `toml:"alpha_start"`
		AlphaMin        float64 `toml:"alpha_min"`
		AlphaDecay      float64 `toml:"alpha_decay"`
		DragAlphaTarget float64 `toml:"drag_alpha_target"`
		VelocityDecay   float64 `toml:"velocity_decay"`
	} `toml:"layout"`

	Forces struct {
		LinkDistance      float64 `toml:"link_distance"`
		LinkStrength      float64 `toml:"link_strength"`
		ChargeStrength    float64 `toml:"charge_strength"`
		ChargeDistanceMin float64 `toml:"charge_distance_min"`
		ChargeDistanceMax float64 `toml:"charge_distance_max"`
		CenterStrength    float64 `toml:"center_strength"`
		CollideRadius     float64 `toml:"collide_radius"`
		PrimaryRadius     float64 `toml:"primary_radius"`
		CollideStrength   float64 `toml:"collide_strength"`
		RingFraction      float64 `toml:"ring_fraction"`
		Seed              uint64  `toml:"seed"`
	} `toml:"forces"`
}

func toFile(c Config) fileConfig {
	var f fileConfig
	f.Layout.TickIntervalMS = c.TickInterval.Milliseconds()
	f.Layout.MaxDurationMS = c.MaxDuration.Milliseconds()
	f.Layout.AlphaStart = c.AlphaStart
	f.Layout.AlphaMin = c.AlphaMin
	f.Layout.AlphaDecay = c.AlphaDecay
	f.Layout.DragAlphaTarget = c.DragAlphaTarget
	f.Layout.VelocityDecay = c.VelocityDecay
	f.Forces.LinkDistance = c.LinkDistance
	f.Forces.LinkStrength = c.LinkStrength
	f.Forces.ChargeStrength = c.ChargeStrength
	f.Forces.ChargeDistanceMin = c.ChargeDistanceMin
	f.Forces.ChargeDistanceMax = c.ChargeDistanceMax
	f.Forces.CenterStrength = c.CenterStrength
	f.Forces.CollideRadius = c.CollideRadius
	f.Forces.PrimaryRadius = c.PrimaryRadius
	f.Forces.CollideStrength = c.CollideStrength
	f.Forces.RingFraction = c.RingFraction
	f.Forces.Seed = c.Seed
	return f
}

func (f fileConfig) config() Config {
	c := DefaultConfig()
	c.TickInterval = time.Duration(f.Layout.TickIntervalMS) * time.Millisecond
	c.MaxDuration = time.Duration(f.Layout.MaxDurationMS) * time.Millisecond
	c.AlphaStart = f.Layout.AlphaStart
	c.AlphaMin = f.Layout.AlphaMin
	c.AlphaDecay = f.Layout.AlphaDecay
	c.DragAlphaTarget = f.Layout.DragAlphaTarget
	c.VelocityDecay = f.Layout.VelocityDecay
	c.LinkDistance = f.Forces.LinkDistance
	c.LinkStrength = f.Forces.LinkStrength
	c.ChargeStrength = f.Forces.ChargeStrength
	c.ChargeDistanceMin = f.Forces.ChargeDistanceMin
	c.ChargeDistanceMax = f.Forces.ChargeDistanceMax
	c.CenterStrength = f.Forces.CenterStrength
	c.CollideRadius = f.Forces.CollideRadius
	c.PrimaryRadius = f.Forces.PrimaryRadius
	c.CollideStrength = f.Forces.CollideStrength
	c.RingFraction = f.Forces.RingFraction
	c.Seed = f.Forces.Seed
	return c
}

// LoadConfig reads a TOML file. Keys missing from the file keep their
// defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read layout config '%s': %w", path, err)
	}

	f := toFile(DefaultConfig())
	if err := toml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("failed to parse layout config: %w", err)
	}
	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid layout config '%s': %w", path, err)
	}
	return cfg, nil
}
