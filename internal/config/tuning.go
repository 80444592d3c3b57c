// Package config loads and validates the monitor's tuning parameters.
//
// Every tunable is a pointer field; omitted fields fall back to defaults
// via the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file,
// relative to the repository root.
const DefaultConfigPath = "config/tuning.defaults.json"

// DHParam is one link's Denavit-Hartenberg block. Angles are degrees in
// the file; conversion to radians happens when the kinematic model is
// built.
type DHParam struct {
	AlphaDeg float64 `json:"alpha_deg"`
	A        float64 `json:"a_m"`
	D        float64 `json:"d_m"`
	ThetaDeg float64 `json:"theta_deg"`
}

// LimitParam is one joint's safety envelope block.
type LimitParam struct {
	AngleMinDeg    float64 `json:"angle_min_deg"`
	AngleMaxDeg    float64 `json:"angle_max_deg"`
	VelocityMaxDps float64 `json:"velocity_max_dps"`
	AccelMaxDps2   float64 `json:"accel_max_dps2"`
}

// TuningConfig represents the root configuration for the safety monitor.
type TuningConfig struct {
	// Singularity classifier thresholds
	WristThresholdDeg  *float64 `json:"wrist_threshold_deg,omitempty"`
	ShoulderThresholdM *float64 `json:"shoulder_threshold_m,omitempty"`
	ElbowThresholdDeg  *float64 `json:"elbow_threshold_deg,omitempty"`

	// Signal conditioning params
	SmoothingAlpha          *float64 `json:"smoothing_alpha,omitempty"`
	WindowSize              *int     `json:"window_size,omitempty"`
	VelocityOutlierFraction *float64 `json:"velocity_outlier_fraction,omitempty"`
	AccelOutlierFraction    *float64 `json:"accel_outlier_fraction,omitempty"`
	HistoryBufferSize       *int     `json:"history_buffer_size,omitempty"`

	// Pipeline params
	UpdateStride *int `json:"update_stride,omitempty"`
	QueueSize    *int `json:"queue_size,omitempty"`

	// SafetyDerationFactor scales the velocity and acceleration bounds
	// (never the angle bounds) when limits come from an external
	// kinematic-limits source.
	SafetyDerationFactor *float64 `json:"safety_deration_factor,omitempty"`

	// Robot geometry and envelopes. Optional: a missing or short DH block
	// disables singularity checking, a missing limits block falls back to
	// static defaults.
	DH     []DHParam    `json:"dh,omitempty"`
	Limits []LimitParam `json:"limits,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any configured values fall inside their documented
// ranges.
func (c *TuningConfig) Validate() error {
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0,1], got %f", *c.SmoothingAlpha)
		}
	}
	if c.WindowSize != nil {
		if *c.WindowSize < 3 || *c.WindowSize > 20 {
			return fmt.Errorf("window_size must be in [3,20], got %d", *c.WindowSize)
		}
	}
	if c.VelocityOutlierFraction != nil {
		if *c.VelocityOutlierFraction <= 0 || *c.VelocityOutlierFraction > 1 {
			return fmt.Errorf("velocity_outlier_fraction must be in (0,1], got %f", *c.VelocityOutlierFraction)
		}
	}
	if c.AccelOutlierFraction != nil {
		if *c.AccelOutlierFraction <= 0 || *c.AccelOutlierFraction > 1 {
			return fmt.Errorf("accel_outlier_fraction must be in (0,1], got %f", *c.AccelOutlierFraction)
		}
	}
	if c.HistoryBufferSize != nil {
		if *c.HistoryBufferSize < 3 {
			return fmt.Errorf("history_buffer_size must be >= 3, got %d", *c.HistoryBufferSize)
		}
	}
	if c.UpdateStride != nil {
		if *c.UpdateStride < 1 {
			return fmt.Errorf("update_stride must be >= 1, got %d", *c.UpdateStride)
		}
	}
	if c.QueueSize != nil {
		if *c.QueueSize < 1 {
			return fmt.Errorf("queue_size must be >= 1, got %d", *c.QueueSize)
		}
	}
	if c.SafetyDerationFactor != nil {
		if *c.SafetyDerationFactor <= 0 || *c.SafetyDerationFactor > 1 {
			return fmt.Errorf("safety_deration_factor must be in (0,1], got %f", *c.SafetyDerationFactor)
		}
	}
	if c.WristThresholdDeg != nil && *c.WristThresholdDeg <= 0 {
		return fmt.Errorf("wrist_threshold_deg must be positive, got %f", *c.WristThresholdDeg)
	}
	if c.ShoulderThresholdM != nil && *c.ShoulderThresholdM <= 0 {
		return fmt.Errorf("shoulder_threshold_m must be positive, got %f", *c.ShoulderThresholdM)
	}
	if c.ElbowThresholdDeg != nil && *c.ElbowThresholdDeg <= 0 {
		return fmt.Errorf("elbow_threshold_deg must be positive, got %f", *c.ElbowThresholdDeg)
	}
	for i, l := range c.Limits {
		if l.AngleMinDeg >= l.AngleMaxDeg {
			return fmt.Errorf("limits[%d]: angle_min_deg %f must be below angle_max_deg %f", i, l.AngleMinDeg, l.AngleMaxDeg)
		}
		if l.VelocityMaxDps <= 0 || l.AccelMaxDps2 <= 0 {
			return fmt.Errorf("limits[%d]: velocity and acceleration bounds must be positive", i)
		}
	}
	return nil
}

// GetWristThresholdDeg returns the wrist_threshold_deg value or the default.
func (c *TuningConfig) GetWristThresholdDeg() float64 {
	if c.WristThresholdDeg == nil {
		return 5.0
	}
	return *c.WristThresholdDeg
}

// GetShoulderThresholdM returns the shoulder_threshold_m value or the default.
func (c *TuningConfig) GetShoulderThresholdM() float64 {
	if c.ShoulderThresholdM == nil {
		return 0.1
	}
	return *c.ShoulderThresholdM
}

// GetElbowThresholdDeg returns the elbow_threshold_deg value or the default.
func (c *TuningConfig) GetElbowThresholdDeg() float64 {
	if c.ElbowThresholdDeg == nil {
		return 5.0
	}
	return *c.ElbowThresholdDeg
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.2
	}
	return *c.SmoothingAlpha
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 8
	}
	return *c.WindowSize
}

// GetVelocityOutlierFraction returns the velocity_outlier_fraction value or the default.
func (c *TuningConfig) GetVelocityOutlierFraction() float64 {
	if c.VelocityOutlierFraction == nil {
		return 0.5
	}
	return *c.VelocityOutlierFraction
}

// GetAccelOutlierFraction returns the accel_outlier_fraction value or the default.
func (c *TuningConfig) GetAccelOutlierFraction() float64 {
	if c.AccelOutlierFraction == nil {
		return 0.5
	}
	return *c.AccelOutlierFraction
}

// GetHistoryBufferSize returns the history_buffer_size value or the default.
func (c *TuningConfig) GetHistoryBufferSize() int {
	if c.HistoryBufferSize == nil {
		return 15
	}
	return *c.HistoryBufferSize
}

// GetUpdateStride returns the update_stride value or the default.
func (c *TuningConfig) GetUpdateStride() int {
	if c.UpdateStride == nil {
		return 1
	}
	return *c.UpdateStride
}

// GetQueueSize returns the queue_size value or the default.
func (c *TuningConfig) GetQueueSize() int {
	if c.QueueSize == nil {
		return 256
	}
	return *c.QueueSize
}

// GetSafetyDerationFactor returns the safety_deration_factor value or the default.
func (c *TuningConfig) GetSafetyDerationFactor() float64 {
	if c.SafetyDerationFactor == nil {
		return 0.8
	}
	return *c.SafetyDerationFactor
}
