// Package config loads the YAML configuration shared by the command line
// tools.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kevmo314/go-uvcmanager/pkg/decode"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
	"github.com/kevmo314/go-uvcmanager/pkg/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Capture Capture `yaml:"capture"`
	Monitor Monitor `yaml:"monitor"`
	Router  Router  `yaml:"router"`
	Log     Log     `yaml:"log"`
}

type Capture struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	PixelFormat string `yaml:"pixel_format"`
}

type Monitor struct {
	PollInterval time.Duration    `yaml:"poll_interval"`
	Filters      []hotplug.Filter `yaml:"filters"`
}

type Router struct {
	MatchDevice bool `yaml:"match_device"`
}

type Log struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Capture: Capture{
			Width:       session.DefaultWidth,
			Height:      session.DefaultHeight,
			PixelFormat: decode.PixelFormatRGB565.String(),
		},
		Monitor: Monitor{
			PollInterval: hotplug.DefaultPollInterval,
			Filters:      hotplug.DefaultFilters(),
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := cfg.decode(f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, fmt.Errorf("capture size %dx%d must be positive", c.Capture.Width, c.Capture.Height))
	}
	if _, err := c.PixelFormat(); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.poll_interval %s must be positive", c.Monitor.PollInterval))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) PixelFormat() (decode.PixelFormat, error) {
	return decode.ParsePixelFormat(c.Capture.PixelFormat)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Logger returns a text logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
