// Package config loads the run configuration of the jzcmd binaries from a
// YAML or TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/JzHartmut/jzcmd/internal/script/executor"
	"github.com/JzHartmut/jzcmd/internal/script/thread"
)

// Duration is a time.Duration read from "250ms"-style strings. A bare
// integer is taken as milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Redis configures remote command execution.
type Redis struct {
	Addr      string `yaml:"addr" toml:"addr"`
	Station   string `yaml:"station" toml:"station"`
	Instance  string `yaml:"instance" toml:"instance"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// Enabled reports whether commands go to a remote station.
func (r Redis) Enabled() bool { return r.Addr != "" && r.Station != "" }

// Store configures the run history database.
type Store struct {
	Path string `yaml:"path" toml:"path"`
}

// Config holds everything a script run needs besides the script itself.
type Config struct {
	Newline         string            `yaml:"newline" toml:"newline"`
	ErrorsInline    bool              `yaml:"errors_inline" toml:"errors_inline"`
	MissingArgument string            `yaml:"missing_argument" toml:"missing_argument"`
	IgnoreExitCodes bool              `yaml:"ignore_exit_codes" toml:"ignore_exit_codes"`
	ThreadQueueSize int               `yaml:"thread_queue_size" toml:"thread_queue_size"`
	ThreadPoll      Duration          `yaml:"thread_poll" toml:"thread_poll"`
	ThreadWait      Duration          `yaml:"thread_wait" toml:"thread_wait"`
	Env             map[string]string `yaml:"env" toml:"env"`
	Redis           Redis             `yaml:"redis" toml:"redis"`
	Store           Store             `yaml:"store" toml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Newline:         "\n",
		MissingArgument: "error",
		ThreadQueueSize: thread.DefaultQueueSize,
		ThreadPoll:      Duration(100 * time.Millisecond),
	}
}

// Load reads path on top of Default. The format follows the extension:
// .yaml and .yml for YAML, .toml for TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and keywords.
func (c *Config) Validate() error {
	if _, err := executor.ParseMissingArgPolicy(c.MissingArgument); err != nil {
		return err
	}
	if c.ThreadQueueSize < 0 {
		return fmt.Errorf("thread_queue_size must not be negative")
	}
	if c.ThreadPoll < 0 || c.ThreadWait < 0 {
		return fmt.Errorf("thread durations must not be negative")
	}
	if c.Redis.TimeoutMs < 0 {
		return fmt.Errorf("redis.timeout_ms must not be negative")
	}
	if (c.Redis.Addr == "") != (c.Redis.Station == "") {
		return fmt.Errorf("redis.addr and redis.station must be set together")
	}
	return nil
}

// ExecutorOptions translates the configuration into executor options.
func (c *Config) ExecutorOptions() ([]executor.Option, error) {
	policy, err := executor.ParseMissingArgPolicy(c.MissingArgument)
	if err != nil {
		return nil, err
	}
	opts := []executor.Option{
		executor.WithErrorsInline(c.ErrorsInline),
		executor.WithMissingArg(policy),
		executor.WithIgnoreExitCodes(c.IgnoreExitCodes),
		executor.WithThreadWait(c.ThreadWait.Std()),
	}
	if c.Newline != "" {
		opts = append(opts, executor.WithNewline(c.Newline))
	}
	if c.ThreadQueueSize > 0 {
		opts = append(opts, executor.WithQueueSize(c.ThreadQueueSize))
	}
	if c.ThreadPoll > 0 {
		opts = append(opts, executor.WithThreadPoll(c.ThreadPoll.Std()))
	}
	return opts, nil
}

// RedisTimeout returns the per-command remote timeout, zero for the
// router default.
func (c *Config) RedisTimeout() time.Duration {
	return time.Duration(c.Redis.TimeoutMs) * time.Millisecond
}
