package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	"github.com/spf13/viper"
)

// Config is the runner configuration. Every key can be set in kgraph.yaml or
// through KGRAPH_ prefixed environment variables, e.g. KGRAPH_DB_HOST or
// KGRAPH_GRAPH_RANK_DAMPING.
type Config struct {
	DB    helper.DatabaseConfiguration `mapstructure:"db"`
	Graph model.Config                 `mapstructure:"graph"`
	Log   LogConfig                    `mapstructure:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// newViper returns a viper instance with the config file lookup, the
// environment binding and the defaults of every stage.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("KGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	graphDefaults, err := toMap(model.DefaultConfig())
	if err != nil {
		return nil, err
	}
	v.SetDefault("graph", graphDefaults)
	v.SetDefault("log.level", "info")
	for _, key := range []string{"host", "port", "database", "username", "password", "schema", "sslmode"} {
		v.SetDefault("db."+key, "")
	}
	v.SetDefault("db.schema", "public")
	v.SetDefault("db.sslmode", "disable")

	return v, nil
}

// loadConfig reads the configuration from v. A missing default config file
// is not an error.
func loadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, helper.NewError("read config", err)
		}
	}

	cfg := &Config{Graph: model.DefaultConfig()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, helper.NewError("unmarshal config", err)
	}
	if err := cfg.Graph.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logLevel parses the configured level, defaulting to info.
func (c *Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, helper.NewError("parse log level", fmt.Errorf("%w: %v", helper.ErrInvalidInput, err))
	}
	return level, nil
}

// toMap turns a tagged struct into the nested map viper takes as defaults.
func toMap(value any) (map[string]any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, helper.NewError("encode defaults", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, helper.NewError("decode defaults", err)
	}
	return out, nil
}
