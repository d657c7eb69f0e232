// Package config reads and writes the CLI configuration stored next to the
// replica.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/reconcile"
	"github.com/marcus/wsmenu/internal/suggest"
)

const (
	configFile = ".wsmenu/config.json"
	lockFile   = ".wsmenu/config.json.lock"
)

// Defaults applied by Effective.
const (
	DefaultServerURL   = "http://localhost:8787"
	DefaultHighlightMS = int(reconcile.DefaultHighlightDuration / time.Millisecond)
)

// Environment overrides, applied by Effective.
const (
	EnvServerURL = "WSMENU_SERVER_URL"
	EnvAMQPURL   = "WSMENU_AMQP_URL"
	EnvOffline   = "WSMENU_OFFLINE"
)

// Load reads the config from disk. A missing file is an empty config.
func Load(baseDir string) (*models.Config, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config atomically (temp file + rename).
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, configPath)
}

// withConfigLock serializes read-modify-write cycles on config.json.
func withConfigLock(baseDir string, fn func() error) error {
	lockPath := filepath.Join(baseDir, lockFile)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockConfig(f); err != nil {
		return err
	}
	defer unlockConfig(f)

	return fn()
}

// Effective returns the stored config with environment overrides and
// defaults applied. It never writes.
func Effective(baseDir string) (*models.Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvAMQPURL); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv(EnvOffline); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Offline = b
		}
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.HighlightMS <= 0 {
		cfg.HighlightMS = DefaultHighlightMS
	}
	return cfg, nil
}

// HighlightDuration returns how long a changed entry stays highlighted.
func HighlightDuration(cfg *models.Config) time.Duration {
	if cfg == nil || cfg.HighlightMS <= 0 {
		return time.Duration(DefaultHighlightMS) * time.Millisecond
	}
	return time.Duration(cfg.HighlightMS) * time.Millisecond
}

// Keys lists the settable keys in display order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type field struct {
	get func(*models.Config) string
	set func(*models.Config, string) error
}

var fields = map[string]field{
	"server_url": {
		get: func(c *models.Config) string { return c.ServerURL },
		set: func(c *models.Config, v string) error {
			if v != "" && !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
				return fmt.Errorf("server_url must start with http:// or https://")
			}
			c.ServerURL = v
			return nil
		},
	},
	"amqp_url": {
		get: func(c *models.Config) string { return c.AMQPURL },
		set: func(c *models.Config, v string) error {
			if v != "" && !strings.HasPrefix(v, "amqp://") && !strings.HasPrefix(v, "amqps://") {
				return fmt.Errorf("amqp_url must start with amqp:// or amqps://")
			}
			c.AMQPURL = v
			return nil
		},
	},
	"workspace_id": {
		get: func(c *models.Config) string { return c.WorkspaceID },
		set: func(c *models.Config, v string) error { c.WorkspaceID = v; return nil },
	},
	"login": {
		get: func(c *models.Config) string { return c.Login },
		set: func(c *models.Config, v string) error { c.Login = v; return nil },
	},
	"offline": {
		get: func(c *models.Config) string { return strconv.FormatBool(c.Offline) },
		set: func(c *models.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("offline must be true or false")
			}
			c.Offline = b
			return nil
		},
	},
	"highlight_ms": {
		get: func(c *models.Config) string { return strconv.Itoa(c.HighlightMS) },
		set: func(c *models.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("highlight_ms must be a non-negative integer")
			}
			c.HighlightMS = n
			return nil
		},
	},
}

// Get returns the stored value of key.
func Get(baseDir, key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", unknownKey(key)
	}
	cfg, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return f.get(cfg), nil
}

// Set validates and stores value under key.
func Set(baseDir, key, value string) error {
	f, ok := fields[key]
	if !ok {
		return unknownKey(key)
	}
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		if err := f.set(cfg, value); err != nil {
			return err
		}
		return Save(baseDir, cfg)
	})
}

// List returns every key with its stored value.
func List(baseDir string) (map[string]string, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, f := range fields {
		out[k] = f.get(cfg)
	}
	return out, nil
}

func unknownKey(key string) error {
	if hints := suggest.Closest(key, Keys()); len(hints) > 0 {
		return fmt.Errorf("unknown config key %q, did you mean %s?", key, strings.Join(hints, ", "))
	}
	return fmt.Errorf("unknown config key %q", key)
}
