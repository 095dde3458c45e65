// Package config loads lazyview settings from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lazyview/pkg/lazy"
)

// ThresholdViewport selects the viewport-height fallback instead of a fixed
// default threshold.
const ThresholdViewport = "viewport"

// Config is the top-level configuration.
type Config struct {
	Lazy     LazyConfig     `yaml:"lazy"`
	Viewport ViewportConfig `yaml:"viewport"`
	Preload  PreloadConfig  `yaml:"preload"`
	Browser  BrowserConfig  `yaml:"browser"`
	Control  ControlConfig  `yaml:"control"`
	BaseURL  string         `yaml:"base_url"`
}

// LazyConfig holds the global lazy-loading options.
type LazyConfig struct {
	Threshold string `yaml:"threshold"` // "200", "200px", "10%" or "viewport"; "0" means "viewport"
	Unload    bool   `yaml:"unload"`
	Debug     bool   `yaml:"debug"`
}

// ViewportConfig is the size of the in-process page.
type ViewportConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PreloadConfig controls background-image preloading.
type PreloadConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// BrowserConfig controls Chrome when the page is driven through rod.
type BrowserConfig struct {
	Remote  string `yaml:"remote"` // DevTools websocket URL; empty launches a browser
	Headful bool   `yaml:"headful"`
}

// ControlConfig configures the HTTP control API.
type ControlConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Lazy.Threshold == "" {
		c.Lazy.Threshold = "200"
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = 1024
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = 768
	}
	if c.Preload.Timeout == 0 {
		c.Preload.Timeout = 30 * time.Second
	}
	if c.Control.Listen == "" {
		c.Control.Listen = "127.0.0.1:8089"
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.threshold(); err != nil {
		return fmt.Errorf("config: lazy.threshold: %w", err)
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return fmt.Errorf("config: viewport size must not be negative")
	}
	if c.Preload.Timeout < 0 {
		return fmt.Errorf("config: preload.timeout must not be negative")
	}
	return nil
}

func (c *Config) threshold() (*lazy.Threshold, error) {
	if strings.EqualFold(strings.TrimSpace(c.Lazy.Threshold), ThresholdViewport) {
		return nil, nil
	}
	t, err := lazy.ParseThreshold(c.Lazy.Threshold)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Options converts the lazy section to controller options.
func (c *Config) Options() (lazy.Options, error) {
	t, err := c.threshold()
	if err != nil {
		return lazy.Options{}, err
	}
	return lazy.Options{Threshold: t, Unload: c.Lazy.Unload, Debug: c.Lazy.Debug}, nil
}
