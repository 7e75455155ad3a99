// SPDX-License-Identifier: MIT

// Package config carries the daemon configuration. Precedence is defaults,
// then the optional YAML file, then CDICT_* environment variables. The
// file is parsed strictly: unknown keys are an error rather than a silent
// typo.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ErrUnknownField is returned when the config file contains a key the
// daemon does not know.
var ErrUnknownField = errors.New("config: unknown field")

// Config is the full cdictd runtime configuration.
type Config struct {
	// Listen is the HTTP bind address of the entry server.
	Listen string `yaml:"listen"`
	// APIToken, when set, requires Bearer auth on mutating endpoints.
	APIToken string `yaml:"api_token"`

	// Backend selects the store: memory, file, badger, bolt, sqlite,
	// redis, http or nop.
	Backend string `yaml:"backend"`
	// Target is the backend location: a directory, a database file, a
	// redis address or a base URL, depending on Backend.
	Target string `yaml:"target"`
	// TTL expires entries on backends that support it (0 keeps forever).
	TTL time.Duration `yaml:"ttl"`

	// WriteRPS throttles writes to the backend; 0 disables the throttle.
	WriteRPS   float64 `yaml:"write_rps"`
	WriteBurst int     `yaml:"write_burst"`
	// Verify rejects stored blobs that no longer decode.
	Verify bool `yaml:"verify"`

	// MaxBlobBytes caps a single uploaded entry.
	MaxBlobBytes int64 `yaml:"max_blob_bytes"`

	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPProtocol   string `yaml:"otlp_protocol"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration cdictd starts from.
func Default() Config {
	return Config{
		Listen:          ":8417",
		Backend:         "memory",
		WriteBurst:      1,
		MaxBlobBytes:    1 << 30,
		LogLevel:        "info",
		MetricsEnabled:  true,
		OTLPProtocol:    "grpc",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load resolves the effective configuration: defaults, overlaid by the
// file at path (if any), overlaid by environment variables, validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	// Path targets are made absolute so a later chdir cannot reseat the store.
	switch cfg.Backend {
	case "file", "badger", "bolt", "sqlite":
		if cfg.Target != "" {
			if abs, err := filepath.Abs(cfg.Target); err == nil {
				cfg.Target = abs
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyYAML overlays the file contents. Absent keys keep their current
// values; unknown keys are rejected.
func (c *Config) applyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays CDICT_* environment variables, each falling back to
// the current value.
func (c *Config) applyEnv() {
	c.Listen = ParseString("CDICT_LISTEN", c.Listen)
	c.APIToken = ParseString("CDICT_API_TOKEN", c.APIToken)
	c.Backend = ParseString("CDICT_BACKEND", c.Backend)
	c.Target = ParseString("CDICT_TARGET", c.Target)
	c.TTL = ParseDuration("CDICT_TTL", c.TTL)
	c.WriteRPS = ParseFloat("CDICT_WRITE_RPS", c.WriteRPS)
	c.WriteBurst = ParseInt("CDICT_WRITE_BURST", c.WriteBurst)
	c.Verify = ParseBool("CDICT_VERIFY", c.Verify)
	c.MaxBlobBytes = int64(ParseInt("CDICT_MAX_BLOB_BYTES", int(c.MaxBlobBytes)))
	c.LogLevel = ParseString("CDICT_LOG_LEVEL", c.LogLevel)
	c.MetricsEnabled = ParseBool("CDICT_METRICS", c.MetricsEnabled)
	c.OTLPEndpoint = ParseString("CDICT_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.OTLPProtocol = ParseString("CDICT_OTLP_PROTOCOL", c.OTLPProtocol)
	c.ReadTimeout = ParseDuration("CDICT_READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = ParseDuration("CDICT_WRITE_TIMEOUT", c.WriteTimeout)
	c.IdleTimeout = ParseDuration("CDICT_IDLE_TIMEOUT", c.IdleTimeout)
	c.ShutdownTimeout = ParseDuration("CDICT_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

var validBackends = map[string]struct{}{
	"": {}, "memory": {}, "file": {}, "badger": {}, "bolt": {},
	"sqlite": {}, "redis": {}, "http": {}, "nop": {},
}

// Validate reports every problem at once rather than the first one.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Listen == "" {
		result = multierror.Append(result, errors.New("listen must not be empty"))
	}
	if _, ok := validBackends[c.Backend]; !ok {
		result = multierror.Append(result, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.Backend {
	case "", "memory", "nop":
	default:
		if c.Target == "" {
			result = multierror.Append(result, fmt.Errorf("backend %q needs a target", c.Backend))
		}
	}
	if c.TTL < 0 {
		result = multierror.Append(result, errors.New("ttl must not be negative"))
	}
	if c.WriteRPS < 0 {
		result = multierror.Append(result, errors.New("write_rps must not be negative"))
	}
	if c.WriteRPS > 0 && c.WriteBurst < 1 {
		result = multierror.Append(result, errors.New("write_burst must be at least 1 when write_rps is set"))
	}
	if c.MaxBlobBytes <= 0 {
		result = multierror.Append(result, errors.New("max_blob_bytes must be positive"))
	}
	switch c.OTLPProtocol {
	case "", "grpc", "http":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown otlp_protocol %q", c.OTLPProtocol))
	}
	if c.ShutdownTimeout <= 0 {
		result = multierror.Append(result, errors.New("shutdown_timeout must be positive"))
	}
	return result.ErrorOrNil()
}
