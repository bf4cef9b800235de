// Package config loads host-side capture tuning from JSON files. Fields are
// pointers so a partial file only overrides what it names; nil fields keep
// the built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default tuning values applied where the config file is silent.
const (
	DefaultMaxFrames    = 5000
	DefaultTickInterval = 33 * time.Millisecond
	DefaultDatasetTicks = 90
)

// CaptureConfig is the root tuning schema. MaxFrames is the host-imposed
// recording cap; the capture core itself never limits buffer growth.
type CaptureConfig struct {
	MaxFrames    *int    `json:"max_frames,omitempty"`
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "33ms"
	DatasetTicks *int    `json:"dataset_ticks,omitempty"`
	ScenePreset  *string `json:"scene_preset,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
}

// LoadCaptureConfig reads a JSON tuning file. The path must have a .json
// extension and the file must be under 1MB. Missing fields are left nil.
func LoadCaptureConfig(path string) (*CaptureConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg CaptureConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the capture loop cannot run with.
func (c *CaptureConfig) Validate() error {
	if c.MaxFrames != nil && *c.MaxFrames <= 0 {
		return fmt.Errorf("max_frames must be positive, got %d", *c.MaxFrames)
	}
	if c.DatasetTicks != nil && *c.DatasetTicks <= 0 {
		return fmt.Errorf("dataset_ticks must be positive, got %d", *c.DatasetTicks)
	}
	if c.TickInterval != nil {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval %q: %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}
	return nil
}

// MaxFramesOrDefault returns the configured cap or the default.
func (c *CaptureConfig) MaxFramesOrDefault() int {
	if c != nil && c.MaxFrames != nil {
		return *c.MaxFrames
	}
	return DefaultMaxFrames
}

// TickIntervalOrDefault returns the configured tick interval or the default.
// Validate has already checked the duration parses.
func (c *CaptureConfig) TickIntervalOrDefault() time.Duration {
	if c != nil && c.TickInterval != nil {
		if d, err := time.ParseDuration(*c.TickInterval); err == nil {
			return d
		}
	}
	return DefaultTickInterval
}

// DatasetTicksOrDefault returns the configured dataset-mode frame count or
// the default.
func (c *CaptureConfig) DatasetTicksOrDefault() int {
	if c != nil && c.DatasetTicks != nil {
		return *c.DatasetTicks
	}
	return DefaultDatasetTicks
}
