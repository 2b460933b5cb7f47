package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates its values, and
// returns the resulting Config. Unknown keys are fatal with "did you mean?"
// suggestions. Required fields are not checked here because the environment
// and flags may still supply them; see Resolve.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, so a run driven entirely by
// flags and environment needs no file.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// The result has passed every check that can be made before the network is
// touched.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := Layer(env, cli)
	if err != nil {
		return nil, err
	}

	if err := ValidateResolved(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Layer applies the override chain without the final required-field check,
// for callers that validate a narrower subset (see ValidateAuth).
func Layer(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	// 1. Resolve config path: CLI > env > default. An explicitly named file
	// must exist.
	cfgPath := DefaultConfigPath()
	explicit := false

	if env.ConfigPath != "" {
		cfgPath, explicit = env.ConfigPath, true
	}

	if cli.ConfigPath != "" {
		cfgPath, explicit = cli.ConfigPath, true
	}

	// 2. Load config file (returns defaults if no file exists)
	var (
		cfg *Config
		err error
	)

	if explicit {
		cfg, err = Load(cfgPath)
	} else {
		cfg, err = LoadOrDefault(cfgPath)
	}

	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	env.apply(cfg)

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	cli.apply(cfg)

	return cfg, nil
}

func (c CLIOverrides) apply(cfg *Config) {
	if c.SiteURL != nil {
		cfg.SiteURL = *c.SiteURL
	}

	if c.Library != nil {
		cfg.Library = *c.Library
	}

	if c.Folder != nil {
		cfg.Folder = *c.Folder
	}

	if c.AuthMode != nil {
		cfg.AuthMode = *c.AuthMode
	}
}
