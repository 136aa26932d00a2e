package wordmerge

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultImageDPI is the resolution assumed for images that carry none.
const DefaultImageDPI = 95.9865952

// Config holds the engine settings. Zero values of LogLevel, LogFormat,
// MaxRenderDepth and ImageDPI mean "use the default" when passed to
// NewWithConfig.
type Config struct {
	// CacheMaxSize is the number of prepared templates PrepareFile keeps; 0 disables caching.
	CacheMaxSize int `yaml:"cache_max_size"`
	// CacheTTL expires cached templates; 0 keeps them until evicted.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// LogLevel is one of debug, info, warn, error, off.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`
	// MaxRenderDepth bounds loop nesting; deeper loops are dropped.
	MaxRenderDepth int `yaml:"max_render_depth"`
	// RemoveFallback strips mc:Fallback branches before rendering.
	RemoveFallback bool `yaml:"remove_fallback"`
	// ImageDPI converts image pixels to EMU.
	ImageDPI float64 `yaml:"image_dpi"`
}

var (
	configMu     sync.RWMutex
	activeConfig = ConfigFromEnvironment()
)

func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:   100,
		LogLevel:       "info",
		LogFormat:      "text",
		MaxRenderDepth: 100,
		RemoveFallback: true,
		ImageDPI:       DefaultImageDPI,
	}
}

// envBinding applies one WORDMERGE_* variable. Values that do not parse
// leave the setting unchanged.
type envBinding struct {
	name  string
	apply func(c *Config, val string) error
}

var envBindings = []envBinding{
	{"WORDMERGE_CACHE_MAX_SIZE", func(c *Config, val string) (err error) {
		c.CacheMaxSize, err = atoiOr(val, c.CacheMaxSize)
		return err
	}},
	{"WORDMERGE_CACHE_TTL", func(c *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err == nil {
			c.CacheTTL = d
		}
		return err
	}},
	{"WORDMERGE_LOG_LEVEL", func(c *Config, val string) error {
		c.LogLevel = strings.ToLower(val)
		return nil
	}},
	{"WORDMERGE_LOG_FORMAT", func(c *Config, val string) error {
		c.LogFormat = strings.ToLower(val)
		return nil
	}},
	{"WORDMERGE_MAX_RENDER_DEPTH", func(c *Config, val string) (err error) {
		c.MaxRenderDepth, err = atoiOr(val, c.MaxRenderDepth)
		return err
	}},
	{"WORDMERGE_REMOVE_FALLBACK", func(c *Config, val string) error {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			c.RemoveFallback = true
		default:
			c.RemoveFallback = false
		}
		return nil
	}},
	{"WORDMERGE_IMAGE_DPI", func(c *Config, val string) error {
		dpi, err := strconv.ParseFloat(val, 64)
		if err == nil {
			c.ImageDPI = dpi
		}
		return err
	}},
}

func atoiOr(val string, fallback int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback, err
	}
	return n, nil
}

// ConfigFromEnvironment returns the defaults overridden by WORDMERGE_*
// variables.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	config.applyEnvironment()
	return config
}

func (c *Config) applyEnvironment() {
	for _, b := range envBindings {
		val, ok := os.LookupEnv(b.name)
		if !ok || val == "" {
			continue
		}
		if err := b.apply(c, val); err != nil {
			// The global logger reads this config, so report on stderr.
			fmt.Fprintf(os.Stderr, "wordmerge: ignoring %s=%q: %v\n", b.name, val, err)
		}
	}
}

// LoadConfigFile reads a YAML configuration file. Keys missing from the
// file keep their defaults and WORDMERGE_* variables override the file.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	config.applyEnvironment()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// NewConfigWithDefaults copies overrides and fills its zero settings from
// DefaultConfig. CacheMaxSize, CacheTTL and RemoveFallback are taken as
// given.
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()
	if overrides == nil {
		return defaults
	}
	config := *overrides
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}
	if config.MaxRenderDepth == 0 {
		config.MaxRenderDepth = defaults.MaxRenderDepth
	}
	if config.ImageDPI == 0 {
		config.ImageDPI = defaults.ImageDPI
	}
	return &config
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	errs := NewMultiError()
	if c.CacheMaxSize < 0 {
		errs.Add(fmt.Errorf("cache max size cannot be negative: %d", c.CacheMaxSize))
	}
	if c.CacheTTL < 0 {
		errs.Add(fmt.Errorf("cache TTL cannot be negative: %s", c.CacheTTL))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		errs.Add(fmt.Errorf("invalid log level: %q", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs.Add(fmt.Errorf("invalid log format: %q", c.LogFormat))
	}
	if c.MaxRenderDepth <= 0 {
		errs.Add(fmt.Errorf("max render depth must be positive: %d", c.MaxRenderDepth))
	}
	if c.ImageDPI <= 0 {
		errs.Add(fmt.Errorf("image dpi must be positive: %g", c.ImageDPI))
	}
	return errs.Err()
}

// GetGlobalConfig returns a copy of the package configuration.
func GetGlobalConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	if activeConfig == nil {
		return DefaultConfig()
	}
	cp := *activeConfig
	return &cp
}

// SetGlobalConfig replaces the package configuration and re-levels the
// package logger.
func SetGlobalConfig(config *Config) {
	configMu.Lock()
	activeConfig = config
	configMu.Unlock()
	UpdateLoggerFromConfig()
}
