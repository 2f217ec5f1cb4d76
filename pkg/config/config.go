// Package config loads safectl settings from a YAML file with environment
// overrides (SAFE_ prefix), via viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/safekit/safe/pkg/types"
)

// Config is the full safectl configuration.
type Config struct {
	RPCURL      string        `mapstructure:"rpc_url"`
	ChainID     int64         `mapstructure:"chain_id"`
	SafeAddress types.Address `mapstructure:"safe_address"`
	DBPath      string        `mapstructure:"db_path"`
	NATSURL     string        `mapstructure:"nats_url"`
	LogLevel    string        `mapstructure:"log_level"`
}

// Load reads configuration from path (a directory holding safectl.yaml,
// or "" for the working directory), applies SAFE_* env overrides and
// defaults. A missing config file is fine; env and defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("safectl")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("SAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain_id", 1)
	v.SetDefault("db_path", "safectl-data")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		addressDecodeHook,
	))); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// addressDecodeHook decodes "0x..." strings into types.Address fields.
func addressDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(types.Address{}) {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return types.Address{}, nil
	}
	return types.ParseAddress(s)
}
