package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flags binds the client flags on a FlagSet. Only flags given on the
// command line override lower-precedence sources.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath string
	DotEnvPath string
	values     Config
}

// BindFlags registers the client flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	def := Default()
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "config file (TOML, or YAML by extension)")
	fs.StringVar(&f.DotEnvPath, "env-file", ".env", "dotenv file with LIVECHAT_* variables")
	fs.StringVarP(&f.values.Endpoint, "endpoint", "e", def.Endpoint, "websocket endpoint")
	fs.StringVarP(&f.values.Identity, "user", "u", def.Identity, "participant identity sent as a query parameter")
	fs.StringVar(&f.values.IdentityParam, "identity-param", def.IdentityParam, "query parameter carrying the identity")
	fs.DurationVar(&f.values.ReconnectDelay, "reconnect-delay", def.ReconnectDelay, "fixed wait before reconnecting")
	fs.StringVar(&f.values.Codec, "codec", def.Codec, "wire codec (json, cbor, protobuf)")
	fs.StringVar(&f.values.Driver, "driver", def.Driver, "websocket driver (gobwas, gorilla, nhooyr)")
	fs.DurationVar(&f.values.DialTimeout, "dial-timeout", def.DialTimeout, "connect and handshake timeout, 0 disables")
	fs.DurationVar(&f.values.WriteTimeout, "write-timeout", def.WriteTimeout, "timeout for a single write")
	fs.BoolVar(&f.values.IncludeSender, "include-sender", def.IncludeSender, "repeat the sender in every outbound frame")
	fs.StringVar(&f.values.MetricsAddr, "metrics-addr", def.MetricsAddr, "serve prometheus metrics on this address")
	return f
}

// apply overlays the flags that were set explicitly.
func (f *Flags) apply(cfg Config) Config {
	set := func(name string) bool { return f.fs.Changed(name) }
	if set("endpoint") {
		cfg.Endpoint = f.values.Endpoint
	}
	if set("user") {
		cfg.Identity = f.values.Identity
	}
	if set("identity-param") {
		cfg.IdentityParam = f.values.IdentityParam
	}
	if set("reconnect-delay") {
		cfg.ReconnectDelay = f.values.ReconnectDelay
	}
	if set("codec") {
		cfg.Codec = f.values.Codec
	}
	if set("driver") {
		cfg.Driver = f.values.Driver
	}
	if set("dial-timeout") {
		cfg.DialTimeout = f.values.DialTimeout
	}
	if set("write-timeout") {
		cfg.WriteTimeout = f.values.WriteTimeout
	}
	if set("include-sender") {
		cfg.IncludeSender = f.values.IncludeSender
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = f.values.MetricsAddr
	}
	return cfg
}

// Load resolves the configuration after fs has been parsed. lookup is
// normally os.LookupEnv.
func Load(f *Flags, lookup Lookup) (Config, error) {
	cfg := Default()

	env, err := WithDotEnv(lookup, f.DotEnvPath)
	if err != nil {
		return cfg, err
	}

	path := f.ConfigPath
	if path == "" {
		path, _ = env(EnvConfig)
	}
	if path != "" {
		if cfg, err = LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}

	if cfg, err = ApplyEnv(cfg, env); err != nil {
		return cfg, err
	}
	cfg = f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
