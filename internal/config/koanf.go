// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cartotile/config.yaml",
	"/etc/cartotile/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Defaults.
const (
	DefaultListenAddresses = "0.0.0.0:3000"
	DefaultKeepAlive       = 75 * time.Second
)

// keyDelim separates koanf key paths. Source IDs may contain dots, so the
// conventional "." would split them into nested keys.
const keyDelim = "/"

// sliceConfigPaths hold lists that may arrive as comma separated strings
// from the environment.
var sliceConfigPaths = []string{
	"server/cors_origins",
	"sprites/paths",
	"fonts/paths",
}

// defaultConfig returns the built-in defaults, the lowest koanf layer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddresses:  DefaultListenAddresses,
			KeepAlive:        DefaultKeepAlive,
			WorkerProcesses:  0, // one per CPU, resolved in Finalize
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			DrainTimeout:     30 * time.Second,
			RefreshRateLimit: 6,
			CORSOrigins:      []string{"*"},
			WatchConfig:      false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			Entries:   10000,
			MaxSizeMB: 512,
			TTL:       time.Hour,
		},
	}
}

// Default returns the built-in configuration, finalized.
func Default() *Config {
	cfg := defaultConfig()
	cfg.Server.WorkerProcesses = runtime.NumCPU()
	return cfg
}

// ResolvePath returns the config file to use. An explicit path must exist.
// Otherwise CONFIG_PATH and then DefaultConfigPaths are tried; "" means no
// file and defaults only.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", wrap(OpLoad, fmt.Errorf("config file %s: %w", explicit, err))
		}
		return explicit, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// Load layers defaults, the YAML file at path (skipped when empty) and
// mapped environment variables. The result is not finalized.
func Load(path string) (*Config, error) {
	k := koanf.New(keyDelim)

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, wrap(OpLoad, fmt.Errorf("failed to load defaults: %w", err))
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrap(OpLoad, fmt.Errorf("failed to load config file %s: %w", path, err))
		}
	}

	// LISTEN_ADDRESSES -> server/listen_addresses, see envTransformFunc.
	if err := k.Load(env.Provider("", keyDelim, envTransformFunc), nil); err != nil {
		return nil, wrap(OpLoad, fmt.Errorf("failed to load environment variables: %w", err))
	}

	if err := processSliceFields(k); err != nil {
		return nil, wrap(OpLoad, err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, wrap(OpLoad, fmt.Errorf("failed to unmarshal configuration: %w", err))
	}
	return cfg, nil
}

// Read runs the full pipeline used at start-up and on every refresh:
// Load, Args.MergeInto and Finalize.
func Read(args Args) (*Config, error) {
	cfg, err := Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := args.MergeInto(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// processSliceFields splits comma separated strings into lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"listen_addresses":   "server/listen_addresses",
	"keep_alive":         "server/keep_alive",
	"worker_processes":   "server/worker_processes",
	"read_timeout":       "server/read_timeout",
	"write_timeout":      "server/write_timeout",
	"shutdown_timeout":   "server/shutdown_timeout",
	"drain_timeout":      "server/drain_timeout",
	"refresh_rate_limit": "server/refresh_rate_limit",
	"cors_origins":       "server/cors_origins",
	"watch_config":       "server/watch_config",

	// Cache
	"cache_entries":     "cache/entries",
	"cache_max_size_mb": "cache/max_size_mb",
	"cache_ttl":         "cache/ttl",

	// Logging
	"log_level":  "logging/level",
	"log_format": "logging/format",
	"log_caller": "logging/caller",
}

// envTransformFunc maps known variables and drops everything else so
// unrelated environment does not leak into the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// FileWatcher reports changes to a config file.
type FileWatcher struct {
	provider *file.File
}

// WatchFile calls onChange after every write to path. Errors reported by
// the watcher are passed to onError when it is non-nil.
func WatchFile(path string, onChange func(), onError func(error)) (*FileWatcher, error) {
	if path == "" {
		return nil, errors.New("no config file to watch")
	}
	provider := file.Provider(path)
	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange()
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &FileWatcher{provider: provider}, nil
}

// Close stops watching.
func (w *FileWatcher) Close() error {
	return w.provider.Unwatch()
}
