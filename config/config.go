// Package config loads the settings of an effect capture pipeline from YAML.
//
// A minimal file:
//
//	capture:
//	  width: 640
//	  height: 480
//	  fps: 30
//	effects:
//	  - name: brightness
//	    amount: 20
//	  - name: grayscale
//
// Missing fields keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	// ErrInvalidCapture indicates non-positive capture dimensions or frame rate.
	ErrInvalidCapture = errors.New("invalid capture settings")

	// ErrInvalidMode indicates a capture mode other than buffer or texture.
	ErrInvalidMode = errors.New("invalid capture mode")

	// ErrInvalidFormat indicates a pixel format other than i420 or nv21.
	ErrInvalidFormat = errors.New("invalid pixel format")

	// ErrInvalidSink indicates unusable sink settings.
	ErrInvalidSink = errors.New("invalid sink settings")

	// ErrInvalidLogLevel indicates a log level logrus does not know.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrEmptyEffectName indicates an effect entry without a name.
	ErrEmptyEffectName = errors.New("effect name cannot be empty")
)

// Capture modes.
const (
	ModeBuffer  = "buffer"
	ModeTexture = "texture"
)

// Pixel formats.
const (
	FormatI420 = "i420"
	FormatNV21 = "nv21"
)

// Config is the full pipeline configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Capture  CaptureConfig `yaml:"capture"`
	Sink     SinkConfig    `yaml:"sink"`
	Effects  []Effect      `yaml:"effects"`
}

// CaptureConfig describes the capture source and the proxy binding.
type CaptureConfig struct {
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	FPS         int           `yaml:"fps"`
	Mode        string        `yaml:"mode"`
	Format      string        `yaml:"format"`
	InitTimeout time.Duration `yaml:"init_timeout"`
}

// SinkConfig describes where processed frames are sent.
type SinkConfig struct {
	Address     string `yaml:"address"`
	PayloadType uint8  `yaml:"payload_type"`
	MTU         int    `yaml:"mtu"`
}

// Effect is one entry of the effect chain. Amount is interpreted per effect.
type Effect struct {
	Name   string  `yaml:"name"`
	Amount float64 `yaml:"amount"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			Width:       640,
			Height:      480,
			FPS:         30,
			Mode:        ModeBuffer,
			Format:      FormatI420,
			InitTimeout: 0, // wait forever
		},
		Sink: SinkConfig{
			Address:     "127.0.0.1:5004",
			PayloadType: 96,
			MTU:         1200,
		},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"path":     path,
		"effects":  len(cfg.Effects),
	}).Info("Configuration loaded")

	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	cc := c.Capture
	if cc.Width <= 0 || cc.Height <= 0 || cc.FPS <= 0 {
		return fmt.Errorf("%w: %dx%d@%d", ErrInvalidCapture, cc.Width, cc.Height, cc.FPS)
	}
	if cc.InitTimeout < 0 {
		return fmt.Errorf("%w: negative init timeout %v", ErrInvalidCapture, cc.InitTimeout)
	}
	switch strings.ToLower(cc.Mode) {
	case ModeBuffer, ModeTexture:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, cc.Mode)
	}
	switch strings.ToLower(cc.Format) {
	case FormatI420, FormatNV21:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cc.Format)
	}

	if c.Sink.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidSink)
	}
	if c.Sink.PayloadType > 127 {
		return fmt.Errorf("%w: payload type %d out of range", ErrInvalidSink, c.Sink.PayloadType)
	}
	if c.Sink.MTU < 64 {
		return fmt.Errorf("%w: mtu %d too small", ErrInvalidSink, c.Sink.MTU)
	}

	for i, effect := range c.Effects {
		if strings.TrimSpace(effect.Name) == "" {
			return fmt.Errorf("effect %d: %w", i, ErrEmptyEffectName)
		}
	}
	return nil
}
