// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates settings for the classification
// pipeline: batch sizing, concurrency, provider credentials and rate
// limits, cascade thresholds, and store location.
//
// Settings are layered, lowest precedence first: compiled-in defaults,
// a YAML settings file, a .env file, then process environment variables.
// The YAML file has a closed schema — unknown keys fail Load instead of
// being silently ignored.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds the credentials and identity for one LLM provider.
type ProviderConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider's default endpoint, mainly for tests.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the model identifier sent in structured-output requests.
	Model string `yaml:"model,omitempty"`

	// RPM is the requests-per-minute ceiling for the token-bucket governor.
	RPM int `yaml:"rpm,omitempty"`
}

// Config is the root configuration for a dirclass run.
type Config struct {
	// StorePath is the filesystem path to the single SQLite database file.
	StorePath string `yaml:"store_path"`

	// InputPath is the xlsx file to classify.
	InputPath string `yaml:"input_path,omitempty"`

	// OutputPath is where the enriched export is written.
	OutputPath string `yaml:"output_path,omitempty"`

	// BatchSize is the number of leads committed per transaction.
	BatchSize int `yaml:"batch_size,omitempty"`

	// MaxConcurrent bounds the worker pool processing leads within a batch.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// MaxLLMCostPerSession caps cumulative L4 spend, in the provider's
	// native currency unit, before the cascade stops calling providers.
	MaxLLMCostPerSession float64 `yaml:"max_llm_cost_per_session,omitempty"`

	// InitialBackoffSeconds is the starting delay after a provider failure.
	InitialBackoffSeconds float64 `yaml:"initial_backoff_seconds,omitempty"`

	// MaxBackoffSeconds caps the exponential backoff delay.
	MaxBackoffSeconds float64 `yaml:"max_backoff_seconds,omitempty"`

	// BackoffMultiplier scales the delay after each consecutive failure.
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"`

	// PerRequestTimeoutSeconds bounds a single provider HTTP call.
	PerRequestTimeoutSeconds float64 `yaml:"per_request_timeout_seconds,omitempty"`

	// PhoneticSimilarityThreshold is the minimum Jaro-Winkler score a
	// candidate needs to reach consensus when at least two phonetic codes
	// agree; a match on a single code needs a fixed score of 0.93.
	PhoneticSimilarityThreshold float64 `yaml:"phonetic_similarity_threshold,omitempty"`

	// LearnedPatternMinConfidence is the floor a learned pattern's
	// confidence must clear before it can classify a lead at L3.
	LearnedPatternMinConfidence float64 `yaml:"learned_pattern_min_confidence,omitempty"`

	// ProviderA and ProviderB are the two LLM providers the rate-limit
	// governor fails over between.
	ProviderA ProviderConfig `yaml:"provider_a,omitempty"`
	ProviderB ProviderConfig `yaml:"provider_b,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat is "simple" or "verbose".
	LogFormat string `yaml:"log_format,omitempty"`
}

// SetDefaults fills zero-valued fields with conservative production
// defaults. Called after decode, before Validate.
func (c *Config) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 200
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 8
	}
	if c.InitialBackoffSeconds == 0 {
		c.InitialBackoffSeconds = 1
	}
	if c.MaxBackoffSeconds == 0 {
		c.MaxBackoffSeconds = 60
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2
	}
	if c.PerRequestTimeoutSeconds == 0 {
		c.PerRequestTimeoutSeconds = 30
	}
	if c.PhoneticSimilarityThreshold == 0 {
		c.PhoneticSimilarityThreshold = 0.85
	}
	if c.LearnedPatternMinConfidence == 0 {
		c.LearnedPatternMinConfidence = 0.6
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
	if c.ProviderA.RPM == 0 {
		c.ProviderA.RPM = 50
	}
	if c.ProviderB.RPM == 0 {
		c.ProviderB.RPM = 50
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be greater than 1")
	}
	if c.InitialBackoffSeconds <= 0 || c.MaxBackoffSeconds < c.InitialBackoffSeconds {
		return fmt.Errorf("invalid backoff bounds")
	}
	if c.PhoneticSimilarityThreshold <= 0 || c.PhoneticSimilarityThreshold > 1 {
		return fmt.Errorf("phonetic_similarity_threshold must be in (0, 1]")
	}
	if c.LearnedPatternMinConfidence <= 0 || c.LearnedPatternMinConfidence > 1 {
		return fmt.Errorf("learned_pattern_min_confidence must be in (0, 1]")
	}
	return nil
}

// StoreConfig projects the store-relevant fields of Config.
func (c *Config) StoreConfig() *StoreConfig {
	return &StoreConfig{Path: c.StorePath}
}

// Load reads settings from a YAML file (if present), a .env file (if
// present), and the process environment, in that precedence order, and
// returns a validated Config.
//
// yamlPath and envPath may be empty to skip that layer.
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := &Config{}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
			}
		} else {
			raw, err := decodeStrictYAML(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
			}
			if err := decodeConfig(raw, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", yamlPath, err)
			}
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// decodeStrictYAML parses YAML into a map, rejecting unrecognized fields
// once it is later decoded into Config via decodeConfig's mapstructure
// pass with ErrorUnused set.
func decodeStrictYAML(data []byte) (map[string]any, error) {
	var result map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// decodeConfig decodes a loosely typed map into Config, failing on any
// key that does not correspond to a Config field.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	return decoder.Decode(input)
}

// applyEnvOverrides lets process environment variables take precedence
// over file-based settings, following the env-var-name convention
// DIRCLASS_<FIELD>.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("DIRCLASS_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("DIRCLASS_INPUT_PATH"); v != "" {
		c.InputPath = v
	}
	if v := os.Getenv("DIRCLASS_OUTPUT_PATH"); v != "" {
		c.OutputPath = v
	}
	if v := os.Getenv("DIRCLASS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv("DIRCLASS_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv("DIRCLASS_MAX_LLM_COST_PER_SESSION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxLLMCostPerSession = f
		}
	}
	if v := os.Getenv("DIRCLASS_PROVIDER_A_API_KEY"); v != "" {
		c.ProviderA.APIKey = v
	}
	if v := os.Getenv("DIRCLASS_PROVIDER_A_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProviderA.RPM = n
		}
	}
	if v := os.Getenv("DIRCLASS_PROVIDER_B_API_KEY"); v != "" {
		c.ProviderB.APIKey = v
	}
	if v := os.Getenv("DIRCLASS_PROVIDER_B_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProviderB.RPM = n
		}
	}
	if v := os.Getenv("DIRCLASS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
