// Package config loads the one read-only settings record each stage is
// built with, per the "global mutable configuration" design note in
// SPEC_FULL.md §9: an immutable value built before workers spawn, then
// passed by shared non-owning reference into each stage's constructor.
package config

import (
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config holds every tunable named in SPEC_FULL.md §6. Defaults are
// populated by Default() and only overridden by a config file if one is
// present; command-line flags, if supplied, override both.
type Config struct {
	MaxDetections       uint16  `toml:"max_detections" json:"max_detections"`
	ConfidenceThreshold float32 `toml:"confidence_threshold" json:"confidence_threshold"`
	IoUThreshold        float32 `toml:"iou_threshold" json:"iou_threshold"`
	FeatureMapSize      uint16  `toml:"feature_map_size" json:"feature_map_size"`
	CameraExposureTime  uint32  `toml:"camera_exposure_time" json:"camera_exposure_time"`

	// Protocol endpoints, compile-time constants in the original design
	// but exposed here as overridable settings (SPEC_FULL.md §4.5).
	UserIP  string `toml:"user_ip" json:"user_ip"`
	CmdPort uint16 `toml:"cmd_port" json:"cmd_port"`
	DataPort uint16 `toml:"data_port" json:"data_port"`
	ImuPort  uint16 `toml:"imu_port" json:"imu_port"`
}

// Default returns the settings used when no config file is present,
// matching SPEC_FULL.md §6 exactly.
func Default() Config {
	return Config{
		MaxDetections:       25,
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.45,
		FeatureMapSize:      80,
		CameraExposureTime:  4000,
		UserIP:              "192.168.1.50",
		CmdPort:             50002,
		DataPort:            50001,
		ImuPort:             50003,
	}
}

// LoadTOML reads a Config.toml, starting from Default() and overriding
// only the keys present in the file.
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decode toml config %s", path)
	}
	return cfg, nil
}

// parseJSONConfig overrides fields in config from a JSON file. Adapted
// near-verbatim from the teacher's server/config.go: open, decode,
// return the decode error directly.
func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}

// LoadJSONOverride applies a JSON override file on top of cfg in place,
// mirroring the teacher's "-c" config-from-file behavior: keys present in
// the file override whatever cfg already holds (defaults and TOML values).
// The command-line flag overrides in cmd/acquisition are applied after it.
func LoadJSONOverride(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if err := parseJSONConfig(cfg, path); err != nil {
		return errors.Wrapf(err, "parse json override %s", path)
	}
	return nil
}

// Warnings returns human-readable sanity warnings for out-of-range
// values. Non-fatal; the caller prints these with color.Red the same
// way the teacher warns about QPP/scavenge misconfiguration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		warnings = append(warnings, "confidence_threshold should be within [0,1]")
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		warnings = append(warnings, "iou_threshold should be within [0,1]")
	}
	if c.MaxDetections == 0 {
		warnings = append(warnings, "max_detections is 0: postprocess will forward nothing")
	}
	if c.FeatureMapSize == 0 {
		warnings = append(warnings, "feature_map_size is 0: postprocess kernel has no valid layout")
	}
	return warnings
}
