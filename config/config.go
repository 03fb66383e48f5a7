// Package config loads Config from a file, SOLANAPAY_* environment variables
// and command-line flags using Viper. Later sources override earlier ones.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

// EnvPrefix namespaces environment overrides, e.g. SOLANAPAY_CLIENT_RPC_URL.
const EnvPrefix = "SOLANAPAY"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"network":      "client.network",
	"rpc-url":      "client.rpc_url",
	"commitment":   "client.commitment",
	"log-level":    "log_level",
	"timeout":      "default_timeout",
	"addr":         "server.addr",
	"base-url":     "server.base_url",
	"database-dsn": "database_dsn",
	"metrics":      "enable_metrics",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.network", string(types.NetworkDevnet))
	v.SetDefault("client.rpc_url", "")
	v.SetDefault("client.ws_url", "")
	v.SetDefault("client.commitment", "confirmed")
	v.SetDefault("builder.lamports_per_signature", types.DefaultLamportsPerSignature)
	v.SetDefault("settlement.poll_interval", 2*time.Second)
	v.SetDefault("settlement.max_attempts", 30)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.label", "Solana Pay")
	v.SetDefault("server.icon_url", "")
	v.SetDefault("server.base_url", "")
	v.SetDefault("database_dsn", "file::memory:?cache=shared")
	v.SetDefault("default_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("enable_metrics", false)
}

// Load builds a Config. path may be empty, in which case ./solanapay.{yaml,json,toml}
// is read if present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*types.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.ErrCodeConfig, err, "failed to read config %s", path)
		}
	} else {
		v.SetConfigName("solanapay")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, types.WrapError(types.ErrCodeConfig, err, "failed to read config")
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, types.WrapError(types.ErrCodeConfig, err, "failed to bind flag %s", name)
				}
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.ErrCodeConfig, err, "failed to decode config")
	}

	if cfg.Client.RPCUrl == "" {
		cfg.Client.RPCUrl = cfg.Client.Network.RPCEndpoint()
	}

	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
