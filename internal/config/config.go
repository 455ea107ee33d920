// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the TOML-decoded configuration surface: the §6
// engine options plus logging and metrics settings. Every sub-struct
// implements InitDefaults/Validate, recursively composed from Config,
// following the pattern laid out by the router's own config package.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/internal/serrors"
)

// Defaulter recursively initializes uninitialized fields.
type Defaulter interface {
	InitDefaults()
}

// Validator recursively checks that all fields hold valid values.
type Validator interface {
	Validate() error
}

// Config is the top-level TOML document.
type Config struct {
	Router  RouterConfig  `toml:"router"`
	Logging LoggingConfig `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

func (c *Config) InitDefaults() {
	c.Router.InitDefaults()
	c.Logging.InitDefaults()
	c.Metrics.InitDefaults()
}

func (c *Config) Validate() error {
	var errs serrors.List
	for _, v := range []Validator{&c.Router, &c.Logging, &c.Metrics} {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ToError()
}

// RouterConfig holds the §6 configuration options verbatim.
type RouterConfig struct {
	TimeToLive               uint8         `toml:"time_to_live"`
	MulticastTimeToLive      uint8         `toml:"multicast_time_to_live"`
	FragmentTimeout          time.Duration `toml:"fragment_timeout"`
	ForceBroadcast           bool          `toml:"force_broadcast"`
	UseProxyARP              bool          `toml:"use_proxy_arp"`
	ReassemblySweepInterval  time.Duration `toml:"reassembly_sweep_interval"`
	FragmentsCarryFullPacket bool          `toml:"fragments_carry_full_packet"`
}

func (c *RouterConfig) InitDefaults() {
	d := engine.DefaultOptions()
	if c.TimeToLive == 0 {
		c.TimeToLive = d.TimeToLive
	}
	if c.MulticastTimeToLive == 0 {
		c.MulticastTimeToLive = d.MulticastTimeToLive
	}
	if c.FragmentTimeout == 0 {
		c.FragmentTimeout = d.FragmentTimeout
	}
	if c.ReassemblySweepInterval == 0 {
		c.ReassemblySweepInterval = d.ReassemblySweepInterval
	}
	// UseProxyARP's zero value (false) is a legitimate, explicitly-chosen
	// value, so unlike the duration fields above it is not defaulted here;
	// cmd/ipengined builds its options from RouterConfig even when no
	// config file is present, so proxy ARP stays off there unless
	// use_proxy_arp = true is set (engine.DefaultOptions() sets it true).
}

func (c *RouterConfig) Validate() error {
	if c.TimeToLive == 0 {
		return serrors.New("router.time_to_live must be nonzero")
	}
	if c.FragmentTimeout <= 0 {
		return serrors.New("router.fragment_timeout must be positive")
	}
	return nil
}

// Options converts RouterConfig to engine.Options.
func (c RouterConfig) Options() engine.Options {
	return engine.Options{
		TimeToLive:               c.TimeToLive,
		MulticastTimeToLive:      c.MulticastTimeToLive,
		FragmentTimeout:          c.FragmentTimeout,
		ForceBroadcast:           c.ForceBroadcast,
		UseProxyARP:              c.UseProxyARP,
		ReassemblySweepInterval:  c.ReassemblySweepInterval,
		FragmentsCarryFullPacket: c.FragmentsCarryFullPacket,
	}
}

// LoggingConfig configures the zap-backed root logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func (c *LoggingConfig) InitDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Format {
	case "console", "json":
	default:
		return serrors.New("log.format must be console or json", "format", c.Format)
	}
	return nil
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Address string `toml:"address"`
}

func (c *MetricsConfig) InitDefaults() {
	if c.Address == "" {
		c.Address = "127.0.0.1:9201"
	}
}

func (c *MetricsConfig) Validate() error {
	if c.Address == "" {
		return serrors.New("metrics.address must not be empty")
	}
	return nil
}

// LoadFile reads and decodes a TOML config file at path, applies
// defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config file", err, "path", path)
	}
	var c Config
	if err := toml.Unmarshal(raw, &c); err != nil {
		return nil, serrors.Wrap("decoding config file", err, "path", path)
	}
	c.InitDefaults()
	if err := c.Validate(); err != nil {
		return nil, serrors.Wrap("validating config", err, "path", path)
	}
	return &c, nil
}
