// Package config holds the settings of every front end. Values come from
// built-in defaults, then a YAML file, then SWAGTEST_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFile       = "swagtest.yaml"
	EnvPrefix         = "SWAGTEST_"
	DefaultServiceURL = "http://127.0.0.1:5000"
)

type Config struct {
	Console ConsoleConfig `yaml:"console"`
	Backend BackendConfig `yaml:"backend"`
	Log     LogConfig     `yaml:"log"`
}

type ConsoleConfig struct {
	Addr string `yaml:"addr"`
	// ServiceURL is the collaborator service. Empty with Embedded set runs
	// the service in process.
	ServiceURL  string        `yaml:"service_url"`
	Embedded    bool          `yaml:"embedded"`
	MaxSessions int           `yaml:"max_sessions"`
	Timeout     time.Duration `yaml:"timeout"`
	DownloadDir string        `yaml:"download_dir"`
	Location    string        `yaml:"location"`
}

type BackendConfig struct {
	Addr        string        `yaml:"addr"`
	BaseURL     string        `yaml:"base_url"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		Console: ConsoleConfig{
			Addr:        ":8080",
			ServiceURL:  DefaultServiceURL,
			MaxSessions: 256,
			DownloadDir: ".",
		},
		Backend: BackendConfig{
			Addr:        ":5000",
			BaseURL:     "https://petstore.swagger.io/v2",
			Concurrency: 4,
			Timeout:     10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies the environment. A missing
// file is only an error when it was asked for explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SWAGTEST_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	env := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		return v, v != ""
	}
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := env(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := env(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("CONSOLE_ADDR", &c.Console.Addr)
	str("SERVICE_URL", &c.Console.ServiceURL)
	flag("EMBEDDED", &c.Console.Embedded)
	num("MAX_SESSIONS", &c.Console.MaxSessions)
	dur("CONSOLE_TIMEOUT", &c.Console.Timeout)
	str("DOWNLOAD_DIR", &c.Console.DownloadDir)
	str("SWAGGER_URL", &c.Console.Location)
	str("BACKEND_ADDR", &c.Backend.Addr)
	str("BASE_URL", &c.Backend.BaseURL)
	num("CONCURRENCY", &c.Backend.Concurrency)
	dur("BACKEND_TIMEOUT", &c.Backend.Timeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Console.MaxSessions <= 0 {
		errs = append(errs, errors.New("console.max_sessions must be positive"))
	}
	if c.Console.Timeout < 0 {
		errs = append(errs, errors.New("console.timeout must not be negative"))
	}
	if !c.Console.Embedded {
		if err := checkURL(c.Console.ServiceURL); err != nil {
			errs = append(errs, fmt.Errorf("console.service_url: %w", err))
		}
	}
	if err := checkURL(c.Backend.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("backend.base_url: %w", err))
	}
	if c.Backend.Concurrency <= 0 {
		errs = append(errs, errors.New("backend.concurrency must be positive"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
