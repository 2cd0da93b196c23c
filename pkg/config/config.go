// Package config provides configuration loading and validation for the
// matcher pipeline and its supporting view cache.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/match"
)

// Sentinel validation errors.
var (
	ErrInvalidMinHeight      = errors.New("match.min_height must not be negative")
	ErrInvalidSimThreshold   = errors.New("match.sim_threshold must be in (0, 1]")
	ErrInvalidSizeThreshold  = errors.New("match.size_threshold must be positive")
	ErrInvalidLabelThreshold = errors.New("match.label_sim_threshold must be in (0, 1]")
	ErrInvalidWeights        = errors.New("match.label_weight and match.position_weight must each be non-negative and sum to 1")
	ErrInvalidCacheSize      = errors.New("cache.view_max_entries must be positive")
)

// Config holds all configuration for a diff run.
type Config struct {
	Match MatchConfig `mapstructure:"match"`
	Cache CacheConfig `mapstructure:"cache"`
}

// MatchConfig mirrors match.Options with mapstructure tags for file/env
// loading.
type MatchConfig struct {
	MinHeight         int     `mapstructure:"min_height"`
	SimThreshold      float64 `mapstructure:"sim_threshold"`
	SizeThreshold     int     `mapstructure:"size_threshold"`
	LabelSimThreshold float64 `mapstructure:"label_sim_threshold"`
	LabelWeight       float64 `mapstructure:"label_weight"`
	PositionWeight    float64 `mapstructure:"position_weight"`
	EnablePhase3      bool    `mapstructure:"enable_phase3"`
}

// CacheConfig holds the decompressed-view cache's sizing.
type CacheConfig struct {
	ViewMaxEntries int `mapstructure:"view_max_entries"`
}

// Options converts the loaded MatchConfig into match.Options.
func (c Config) Options() match.Options {
	return match.Options{
		MinHeight:         c.Match.MinHeight,
		SimThreshold:      c.Match.SimThreshold,
		SizeThreshold:     c.Match.SizeThreshold,
		LabelSimThreshold: c.Match.LabelSimThreshold,
		EnablePhase3:      c.Match.EnablePhase3,
		LabelWeight:       c.Match.LabelWeight,
		PositionWeight:    c.Match.PositionWeight,
	}
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches the working directory and /etc/hyperdiff for a
// "config.yaml"; a missing file in that case is not an error, since every
// field falls back to its documented default.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/hyperdiff")
	}

	viperCfg.SetEnvPrefix("HYPERDIFF")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values, sourced from
// match.DefaultOptions so the two never drift apart.
func setDefaults(viperCfg *viper.Viper) {
	defaults := match.DefaultOptions()

	viperCfg.SetDefault("match.min_height", defaults.MinHeight)
	viperCfg.SetDefault("match.sim_threshold", defaults.SimThreshold)
	viperCfg.SetDefault("match.size_threshold", defaults.SizeThreshold)
	viperCfg.SetDefault("match.label_sim_threshold", defaults.LabelSimThreshold)
	viperCfg.SetDefault("match.enable_phase3", defaults.EnablePhase3)
	viperCfg.SetDefault("match.label_weight", defaults.LabelWeight)
	viperCfg.SetDefault("match.position_weight", defaults.PositionWeight)

	viperCfg.SetDefault("cache.view_max_entries", DefaultCacheViewMaxEntries)
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Match.MinHeight < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinHeight, cfg.Match.MinHeight)
	}

	if cfg.Match.SimThreshold <= 0 || cfg.Match.SimThreshold > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidSimThreshold, cfg.Match.SimThreshold)
	}

	if cfg.Match.SizeThreshold <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSizeThreshold, cfg.Match.SizeThreshold)
	}

	if cfg.Match.LabelSimThreshold <= 0 || cfg.Match.LabelSimThreshold > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidLabelThreshold, cfg.Match.LabelSimThreshold)
	}

	const weightTolerance = 1e-9

	weightSum := cfg.Match.LabelWeight + cfg.Match.PositionWeight
	if cfg.Match.LabelWeight < 0 || cfg.Match.PositionWeight < 0 ||
		weightSum < 1-weightTolerance || weightSum > 1+weightTolerance {
		return fmt.Errorf("%w: label=%f position=%f", ErrInvalidWeights, cfg.Match.LabelWeight, cfg.Match.PositionWeight)
	}

	if cfg.Cache.ViewMaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, cfg.Cache.ViewMaxEntries)
	}

	return nil
}
