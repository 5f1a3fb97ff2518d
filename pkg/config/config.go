/*
Package config loads coordinatord's startup configuration from a YAML file.
Only cmd/coordinatord reads it; every core package (storage, fsm, query,
statemachine) takes its dependencies as explicit constructor arguments and
never reaches into a config global.
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is coordinatord's startup configuration.
type Config struct {
	// DataDir is where the bbolt database file is created.
	DataDir string `yaml:"dataDir"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"logLevel"`
	// JSONLogs selects JSON output over the console writer.
	JSONLogs bool `yaml:"jsonLogs"`
}

// Default returns the configuration coordinatord starts with when no file
// is given.
func Default() Config {
	return Config{
		DataDir:  "./data",
		LogLevel: "info",
		JSONLogs: false,
	}
}

// Load reads and parses a YAML config file, starting from Default() so a
// partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("config: dataDir must not be empty")
	}
	return cfg, nil
}
