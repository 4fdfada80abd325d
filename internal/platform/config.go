package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "750ms" or "2s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the on-disk configuration of the CLI.
type Config struct {
	API struct {
		URL     string   `yaml:"url"`
		Token   string   `yaml:"token,omitempty"`
		Timeout Duration `yaml:"timeout,omitempty"`
	} `yaml:"api"`

	Drafts struct {
		// Backend is memory, fs, sqlite or redis.
		Backend string `yaml:"backend"`
		// Path is the adapter uri: directory, database file or redis URL.
		Path  string   `yaml:"path,omitempty"`
		TTL   Duration `yaml:"ttl,omitempty"`
		Quota int      `yaml:"quota,omitempty"`
	} `yaml:"drafts"`

	Autosave struct {
		Debounce       Duration   `yaml:"debounce,omitempty"`
		RetryDelays    []Duration `yaml:"retry_delays,omitempty"`
		ReconnectDelay Duration   `yaml:"reconnect_delay,omitempty"`
	} `yaml:"autosave"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	var c Config
	c.API.URL = "http://localhost:8080/api"
	c.Drafts.Backend = "fs"
	c.Drafts.Path = ".inkwell/drafts"
	return c
}

// LoadConfig reads path over DefaultConfig and applies INKWELL_* environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"INKWELL_API_URL":        &c.API.URL,
		"INKWELL_API_TOKEN":      &c.API.Token,
		"INKWELL_DRAFTS_BACKEND": &c.Drafts.Backend,
		"INKWELL_DRAFTS_PATH":    &c.Drafts.Path,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"INKWELL_API_TIMEOUT":     &c.API.Timeout,
		"INKWELL_DEBOUNCE":        &c.Autosave.Debounce,
		"INKWELL_RECONNECT_DELAY": &c.Autosave.ReconnectDelay,
		"INKWELL_DRAFTS_TTL":      &c.Drafts.TTL,
	}
	for name, dst := range durations {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = Duration(d)
	}

	if v, ok := lookup("INKWELL_RETRY_DELAYS"); ok {
		var delays []Duration
		for _, part := range strings.Split(v, ",") {
			d, err := time.ParseDuration(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("INKWELL_RETRY_DELAYS: %w", err)
			}
			delays = append(delays, Duration(d))
		}
		c.Autosave.RetryDelays = delays
	}
	return nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Drafts.Backend {
	case "memory", "fs", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown drafts backend %q", c.Drafts.Backend)
	}
	if c.Drafts.Backend != "memory" && c.Drafts.Path == "" {
		return fmt.Errorf("drafts backend %s needs a path", c.Drafts.Backend)
	}
	if c.API.URL == "" {
		return errors.New("api url is required")
	}
	return nil
}

// Options translates the configuration into engine options.
func (c Config) Options() []Option {
	opts := []Option{WithAdapter(c.Drafts.Backend)}
	if c.Drafts.Quota > 0 {
		opts = append(opts, WithQuota(c.Drafts.Quota))
	}
	if c.Drafts.TTL > 0 {
		opts = append(opts, WithDraftTTL(time.Duration(c.Drafts.TTL)))
	}
	if c.Autosave.Debounce > 0 {
		opts = append(opts, WithDebounce(time.Duration(c.Autosave.Debounce)))
	}
	if c.Autosave.ReconnectDelay > 0 {
		opts = append(opts, WithReconnectDelay(time.Duration(c.Autosave.ReconnectDelay)))
	}
	if c.API.Timeout > 0 {
		opts = append(opts, WithRequestTimeout(time.Duration(c.API.Timeout)))
	}
	if len(c.Autosave.RetryDelays) > 0 {
		delays := make([]time.Duration, len(c.Autosave.RetryDelays))
		for i, d := range c.Autosave.RetryDelays {
			delays[i] = time.Duration(d)
		}
		opts = append(opts, WithRetryDelays(delays...))
	}
	return opts
}
