// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	// DefaultRelativeBeamWidth is the default linear relative beam; a
	// value of 0 disables relative-beam gating.
	DefaultRelativeBeamWidth = 0.0

	// DefaultAbsoluteBeamWidth is the default absolute beam; a value of
	// 0 keeps every token through Purge.
	DefaultAbsoluteBeamWidth = 0

	// ActiveListTypeSimple selects the unsorted bag implementation.
	ActiveListTypeSimple = "simple"
)

var configValidate = validator.New()

// Config is the search manager's configuration surface. It can be
// embedded in a YAML configuration file; fields a file leaves out keep
// the DefaultConfig values. A zero Config is not the default: its
// BuildWordLattice is false.
//
// Thread Safety: safe to read concurrently, not safe to modify after
// the manager has been constructed from it.
type Config struct {
	// ActiveListType names the ActiveList implementation to use.
	// Default: "simple".
	ActiveListType string `yaml:"active_list_type" validate:"omitempty,oneof=simple"`

	// ShowTokenCount enables a per-call debug dump of the live token
	// lattice size.
	ShowTokenCount bool `yaml:"show_token_count"`

	// CheckStateOrder enables assertion that arcs never target a state
	// class sorting strictly before their source's class (emitting
	// sources excepted). Violations abort the utterance.
	CheckStateOrder bool `yaml:"check_state_order"`

	// BuildWordLattice enables alternate-predecessor recording for
	// word-lattice construction. Default: true (see DefaultConfig).
	BuildWordLattice bool `yaml:"build_word_lattice"`

	// GrowSkipInterval, when > 1, skips the growth step every
	// GrowSkipInterval-th frame, trading accuracy for speed.
	GrowSkipInterval int `yaml:"grow_skip_interval" validate:"gte=0"`

	// AcousticLookaheadFrames, when > 0, gates emitting growth on a
	// lookahead-projected working score instead of the raw path score.
	// Need not be an integer.
	AcousticLookaheadFrames float64 `yaml:"acoustic_lookahead_frames" validate:"gte=0"`

	// KeepAllTokens retains every intermediate token on predecessor
	// chains instead of compressing them to the most recent word token.
	KeepAllTokens bool `yaml:"keep_all_tokens"`

	// RelativeBeamWidth is the linear relative beam width, converted to
	// the log domain internally. 0 disables relative gating.
	RelativeBeamWidth float64 `yaml:"relative_beam_width" validate:"gte=0,lte=1"`

	// AbsoluteBeamWidth bounds each active list's size at Purge.
	// 0 disables absolute pruning.
	AbsoluteBeamWidth int `yaml:"absolute_beam_width" validate:"gte=0"`

	// MaxTokenHeapSize, when > 0, switches the best-token map to its
	// bounded k-best heap variant with this capacity per state key.
	MaxTokenHeapSize int `yaml:"max_token_heap_size" validate:"gte=0"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		ActiveListType:    ActiveListTypeSimple,
		BuildWordLattice:  true,
		RelativeBeamWidth: DefaultRelativeBeamWidth,
		AbsoluteBeamWidth: DefaultAbsoluteBeamWidth,
	}
}

// LoadConfig reads a YAML configuration file over the defaults. A
// missing file yields the defaults; an unreadable or invalid file is an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid search config: %w", err)
	}
	return nil
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger sets the manager's logger. Nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActiveListFactory overrides the active-list factory derived from
// the configuration. Useful for custom ActiveList implementations.
func WithActiveListFactory(factory ActiveListFactory) Option {
	return func(m *Manager) {
		if factory != nil {
			m.factory = factory
		}
	}
}
