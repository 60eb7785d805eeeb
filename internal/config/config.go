// Package config assembles client configuration from defaults, a config
// file, a .env file, LIVECHAT_* environment variables and flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/internal/transport/ws"
	"github.com/omochice/livechat/pkg/protocol"
)

// ErrInvalid is returned by Validate and Load for unusable settings.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved client configuration.
type Config struct {
	Endpoint       string        `toml:"endpoint" yaml:"endpoint"`
	Identity       string        `toml:"user" yaml:"user"`
	IdentityParam  string        `toml:"identity_param" yaml:"identity_param"`
	ReconnectDelay time.Duration `toml:"-" yaml:"-"`
	Codec          string        `toml:"codec" yaml:"codec"`
	Driver         string        `toml:"driver" yaml:"driver"`
	DialTimeout    time.Duration `toml:"-" yaml:"-"`
	WriteTimeout   time.Duration `toml:"-" yaml:"-"`
	IncludeSender  bool          `toml:"include_sender" yaml:"include_sender"`
	MetricsAddr    string        `toml:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:       "ws://localhost:3001/",
		Identity:       "user1",
		IdentityParam:  session.DefaultIdentityParam,
		ReconnectDelay: 3 * time.Second,
		Codec:          "json",
		Driver:         "gobwas",
		DialTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Identity) == "" {
		return fmt.Errorf("%w: user must not be empty", ErrInvalid)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect delay must be positive, got %v", ErrInvalid, c.ReconnectDelay)
	}
	if c.DialTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	if _, err := protocol.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !contains(ws.DriverNames(), c.Driver) {
		return fmt.Errorf("%w: unknown driver %q (have %s)", ErrInvalid, c.Driver, strings.Join(ws.DriverNames(), ", "))
	}
	if _, err := c.ParseEndpoint(); err != nil {
		return err
	}
	return nil
}

// ParseEndpoint returns the endpoint descriptor for the configured
// identity.
func (c Config) ParseEndpoint() (session.Endpoint, error) {
	ep, err := session.ParseEndpoint(c.Endpoint, c.Identity)
	if err != nil {
		return session.Endpoint{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.IdentityParam != "" {
		ep.IdentityParam = c.IdentityParam
	}
	return ep, nil
}

// Form returns the outbound frame form.
func (c Config) Form() protocol.Form {
	if c.IncludeSender {
		return protocol.FormExtended
	}
	return protocol.FormMinimal
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// fileConfig mirrors Config with durations as strings.
type fileConfig struct {
	Config         `yaml:",inline"`
	ReconnectDelay string `toml:"reconnect_delay" yaml:"reconnect_delay"`
	DialTimeout    string `toml:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout   string `toml:"write_timeout" yaml:"write_timeout"`
}

// LoadFile overlays the settings found in path onto cfg. Files ending in
// .yaml or .yml are YAML, everything else is TOML. Settings absent from
// the file keep their value in cfg.
func LoadFile(path string, cfg Config) (Config, error) {
	raw := fileConfig{Config: cfg}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("load config: %w", err)
			}
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	out := raw.Config
	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"reconnect_delay", raw.ReconnectDelay, &out.ReconnectDelay},
		{"dial_timeout", raw.DialTimeout, &out.DialTimeout},
		{"write_timeout", raw.WriteTimeout, &out.WriteTimeout},
	} {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrInvalid, d.name, err)
		}
		*d.dst = v
	}
	return out, nil
}

// Environment variable names.
const (
	EnvEndpoint       = "LIVECHAT_ENDPOINT"
	EnvUser           = "LIVECHAT_USER"
	EnvIdentityParam  = "LIVECHAT_IDENTITY_PARAM"
	EnvReconnectDelay = "LIVECHAT_RECONNECT_DELAY"
	EnvCodec          = "LIVECHAT_CODEC"
	EnvDriver         = "LIVECHAT_DRIVER"
	EnvDialTimeout    = "LIVECHAT_DIAL_TIMEOUT"
	EnvWriteTimeout   = "LIVECHAT_WRITE_TIMEOUT"
	EnvIncludeSender  = "LIVECHAT_INCLUDE_SENDER"
	EnvMetricsAddr    = "LIVECHAT_METRICS_ADDR"
	EnvConfig         = "LIVECHAT_CONFIG"
)

// Lookup resolves an environment variable.
type Lookup func(key string) (string, bool)

// WithDotEnv returns a Lookup that consults lookup first and then the
// variables defined in the .env file at path. A missing file is ignored.
func WithDotEnv(lookup Lookup, path string) (Lookup, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lookup, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays LIVECHAT_* variables onto cfg.
func ApplyEnv(cfg Config, lookup Lookup) (Config, error) {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvEndpoint, &cfg.Endpoint},
		{EnvUser, &cfg.Identity},
		{EnvIdentityParam, &cfg.IdentityParam},
		{EnvCodec, &cfg.Codec},
		{EnvDriver, &cfg.Driver},
		{EnvMetricsAddr, &cfg.MetricsAddr},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = strings.TrimSpace(v)
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvReconnectDelay, &cfg.ReconnectDelay},
		{EnvDialTimeout, &cfg.DialTimeout},
		{EnvWriteTimeout, &cfg.WriteTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup(EnvIncludeSender); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvIncludeSender, err)
		}
		cfg.IncludeSender = b
	}
	return cfg, nil
}
