// Package config loads tdl settings from defaults, a TOML file, the
// environment, and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tgienger/tdl/internal/db"
	"github.com/tgienger/tdl/internal/logging"
)

// Config holds every tunable
type Config struct {
	// Client
	APIURL         string   `toml:"api_url"`
	RequestTimeout Duration `toml:"request_timeout"`

	// Server
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`
	Seed   bool   `toml:"seed"`

	// Logging
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	LogJSON  bool   `toml:"log_json"`
}

// Duration is a time.Duration that reads from TOML strings like "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Overrides carries values set on the command line. Nil fields were not set.
type Overrides struct {
	APIURL         *string
	RequestTimeout *time.Duration
	Addr           *string
	DBPath         *string
	Seed           *bool
	LogLevel       *string
	LogFile        *string
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		APIURL:         "http://localhost:5000",
		RequestTimeout: Duration{10 * time.Second},
		Addr:           ":5000",
		Seed:           true,
		LogLevel:       "info",
	}
}

// Load builds the configuration. path names a config file; when empty the
// user config file is used if it exists.
func Load(path string, o Overrides) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = UserConfigFile()
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return nil, err
	}
	applyOverrides(&cfg, o)

	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UserConfigFile returns $XDG_CONFIG_HOME/tdl/config.toml (or the OS equivalent)
func UserConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "tdl", "config.toml")
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TDL_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TDL_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TDL_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = Duration{d}
	}
	if v := os.Getenv("TDL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TDL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TDL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TDL_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.APIURL != nil {
		cfg.APIURL = *o.APIURL
	}
	if o.RequestTimeout != nil {
		cfg.RequestTimeout = Duration{*o.RequestTimeout}
	}
	if o.Addr != nil {
		cfg.Addr = *o.Addr
	}
	if o.DBPath != nil {
		cfg.DBPath = *o.DBPath
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.LogFile = *o.LogFile
	}
}

func finalize(cfg *Config) error {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		return errors.New("api_url must not be empty")
	}
	if cfg.RequestTimeout.Duration < 0 {
		return errors.New("request_timeout must not be negative")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ResolveDBPath returns DBPath, or the default data-dir location when unset
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	return db.DefaultPath()
}

// ResolveLogFile returns LogFile, or tdl.log in the data dir when unset
func (c *Config) ResolveLogFile() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	dir, err := db.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tdl.log"), nil
}
