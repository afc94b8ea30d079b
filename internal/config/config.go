package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nickryand/flox/pkg/errors"
)

const (
	// DefaultFloxHubURL is the base URL floxmeta repositories are cloned from
	DefaultFloxHubURL = "https://git.hub.flox.dev"

	// ConfigFileName is the name of the optional config file inside ConfigDir
	ConfigFileName = "flox.yml"
)

// Config holds all flox SDK process settings
type Config struct {
	// Directory configuration
	CacheDir  string `yaml:"cache_dir"`
	DataDir   string `yaml:"data_dir"`
	ConfigDir string `yaml:"config_dir"`

	// FloxHub configuration
	FloxHubURL string `yaml:"floxhub_url"`

	// Metrics
	DisableMetrics bool `yaml:"disable_metrics"`

	// Debugging
	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`
	Verbose bool   `yaml:"verbose"`
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		FloxHubURL: DefaultFloxHubURL,
		Verbose:    true,
	}
}

// LoadFromFile merges settings from a YAML config file into the config.
// A missing file is not an error; a malformed one is.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewConfigError("file", path, fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewConfigError("file", path, fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
	}
	return nil
}

// LoadFromEnvironment updates config from environment variables
func (c *Config) LoadFromEnvironment() {
	c.CacheDir = getEnvString("FLOX_CACHE_DIR", c.CacheDir)
	c.DataDir = getEnvString("FLOX_DATA_DIR", c.DataDir)
	c.ConfigDir = getEnvString("FLOX_CONFIG_DIR", c.ConfigDir)
	c.FloxHubURL = getEnvString("FLOX_FLOXHUB_URL", c.FloxHubURL)
	c.DisableMetrics = getEnvBool("FLOX_DISABLE_METRICS", c.DisableMetrics)
	c.Debug = getEnvBool("FLOX_DEBUG", c.Debug)
	c.LogFile = getEnvString("FLOX_LOG_FILE", c.LogFile)
	c.Verbose = getEnvBool("FLOX_VERBOSE", c.Verbose)
}

// Finalize validates and finalizes the configuration
func (c *Config) Finalize() error {
	if c.FloxHubURL == "" {
		return errors.NewConfigError("floxhubURL", c.FloxHubURL,
			errors.Wrap(errors.ErrInvalidConfiguration, "floxhub URL must not be empty"))
	}
	parsed, err := url.Parse(c.FloxHubURL)
	if err != nil || parsed.Scheme == "" {
		return errors.NewConfigError("floxhubURL", c.FloxHubURL,
			errors.Wrap(errors.ErrInvalidConfiguration, "floxhub URL must be an absolute URL"))
	}

	if c.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return errors.NewConfigError("cacheDir", "",
				fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
		}
		c.CacheDir = filepath.Join(base, "flox")
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.NewConfigError("dataDir", "",
				fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
		}
		c.DataDir = filepath.Join(home, ".local", "share", "flox")
	}
	if c.ConfigDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return errors.NewConfigError("configDir", "",
				fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
		}
		c.ConfigDir = filepath.Join(base, "flox")
	}

	for name, dir := range map[string]*string{
		"cacheDir":  &c.CacheDir,
		"dataDir":   &c.DataDir,
		"configDir": &c.ConfigDir,
	} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return errors.NewConfigError(name, *dir,
				fmt.Errorf("%w: %w", errors.ErrInvalidConfiguration, err))
		}
		*dir = abs
	}

	if c.Debug && c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "logs", "flox.log")
	}

	return nil
}

// ConfigFile returns the path of the config file inside ConfigDir.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.ConfigDir, ConfigFileName)
}

// getEnvString returns the environment variable value or the fallback
func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvBool returns the environment variable parsed as bool or the fallback
func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
