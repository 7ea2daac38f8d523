package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// Path is an explicit config file; it must exist when set.
	Path string
	// Detector feeds the Lua platform table; nil omits the table.
	Detector platform.Detector
	// Getenv reads the environment; os.Getenv when nil.
	Getenv func(string) string
}

// Load returns defaults overlaid with the config file and environment.
//
// The file is opts.Path, else $COOKSHIP_CONFIG, else ./cookship.lua if it
// exists.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := opts.Path
	explicit := path != ""
	if !explicit {
		if env := getenv(EnvConfig); env != "" {
			path, explicit = env, true
		}
	}
	if !explicit {
		path = DefaultConfigFile
	}

	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		parsed, err := NewParser(opts.Detector).ParseFile(ctx, path, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", path, err)
		}
		cfg = parsed
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("config file %s: %w", path, err)
	} else {
		path = ""
	}

	ApplyEnv(cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// ApplyEnv overrides cfg with VERSION, IMAGE and GITHUB_TOKEN when set.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvVersion)); v != "" {
		cfg.Version = v
	}
	if v := strings.TrimSpace(getenv(EnvImage)); v != "" {
		cfg.Image = v
	}
	if v := getenv(EnvGitHubToken); v != "" {
		cfg.GitHubToken = v
	}
}
