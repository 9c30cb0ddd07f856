// Package tuning loads the terrain cache configuration from YAML. Values
// missing from a config file keep the embedded defaults.
package tuning

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"terragrain/terrain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the full recognized option surface.
type Config struct {
	World     World     `yaml:"world"`
	Map       Map       `yaml:"map"`
	Streaming Streaming `yaml:"streaming"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// World fixes the simulated extent and its anchor, in meters.
type World struct {
	SizeX   float64 `yaml:"size_x"`
	SizeY   float64 `yaml:"size_y"`
	SizeZ   float64 `yaml:"size_z"`
	OriginX float64 `yaml:"origin_x"`
	OriginY float64 `yaml:"origin_y"`
	OriginZ float64 `yaml:"origin_z"`
}

// Map mirrors terrain.MapConfig.
type Map struct {
	TileSize          float64 `yaml:"tile_size"`
	ParticleSpacing   float64 `yaml:"particle_spacing"`
	ParticleRadius    float64 `yaml:"particle_radius"`
	SeedDepth         float64 `yaml:"seed_depth"`
	KeepMargin        float64 `yaml:"keep_margin"`
	MaxTilesPerUpdate int     `yaml:"max_tiles_per_update"`
}

// Streaming tunes the background worker.
type Streaming struct {
	RadiusX     float64 `yaml:"radius_x"`
	RadiusY     float64 `yaml:"radius_y"`
	IntervalMs  int     `yaml:"interval_ms"`
	SaveOnEvict bool    `yaml:"save_on_evict"`
}

// Telemetry selects the CSV output directory; empty disables output.
type Telemetry struct {
	Dir string `yaml:"dir"`
}

// Default returns the embedded default configuration.
func Default() Config {
	var c Config
	// The embedded defaults are compiled in and covered by tests; a parse
	// failure here is a build defect.
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		panic(fmt.Sprintf("tuning defaults.yaml: %v", err))
	}
	return c
}

// Load reads a YAML config file over the embedded defaults and validates the
// result.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate rejects settings the map cannot run with.
func (c Config) Validate() error {
	if c.World.SizeX <= 0 || c.World.SizeY <= 0 {
		return fmt.Errorf("world size must be positive, got %gx%g", c.World.SizeX, c.World.SizeY)
	}
	if c.Map.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %g", c.Map.TileSize)
	}
	if c.Map.ParticleSpacing <= 0 || c.Map.ParticleSpacing > c.Map.TileSize {
		return fmt.Errorf("particle_spacing must be in (0, tile_size], got %g", c.Map.ParticleSpacing)
	}
	if c.Map.KeepMargin < 1 {
		return fmt.Errorf("keep_margin must be >= 1, got %g", c.Map.KeepMargin)
	}
	if c.Map.MaxTilesPerUpdate <= 0 {
		return fmt.Errorf("max_tiles_per_update must be positive, got %d", c.Map.MaxTilesPerUpdate)
	}
	if c.Streaming.RadiusX < 0 || c.Streaming.RadiusY < 0 {
		return fmt.Errorf("streaming radii must be non-negative, got %g/%g", c.Streaming.RadiusX, c.Streaming.RadiusY)
	}
	if c.Streaming.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.Streaming.IntervalMs)
	}
	return nil
}

// MapConfig converts the map section for terrain.NewSparseTileMap.
func (c Config) MapConfig() terrain.MapConfig {
	return terrain.MapConfig{
		TileSize:          c.Map.TileSize,
		ParticleSpacing:   c.Map.ParticleSpacing,
		ParticleRadius:    c.Map.ParticleRadius,
		SeedDepth:         c.Map.SeedDepth,
		KeepMargin:        c.Map.KeepMargin,
		MaxTilesPerUpdate: c.Map.MaxTilesPerUpdate,
	}
}

// Interval returns the worker interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Streaming.IntervalMs) * time.Millisecond
}
