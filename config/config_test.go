package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 640, cfg.Capture.Width)
	assert.Equal(t, ModeBuffer, cfg.Capture.Mode)
	assert.Zero(t, cfg.Capture.InitTimeout)
	assert.Empty(t, cfg.Effects)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
capture:
  width: 1280
  height: 720
  format: nv21
  init_timeout: 2s
sink:
  mtu: 1400
effects:
  - name: brightness
    amount: 15
  - name: grayscale
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1280, cfg.Capture.Width)
	assert.Equal(t, 720, cfg.Capture.Height)
	assert.Equal(t, 30, cfg.Capture.FPS, "default kept")
	assert.Equal(t, FormatNV21, cfg.Capture.Format)
	assert.Equal(t, 2*time.Second, cfg.Capture.InitTimeout)
	assert.Equal(t, "127.0.0.1:5004", cfg.Sink.Address, "default kept")
	assert.Equal(t, 1400, cfg.Sink.MTU)
	assert.Equal(t, []Effect{{Name: "brightness", Amount: 15}, {Name: "grayscale"}}, cfg.Effects)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"log level", "log_level: loud", ErrInvalidLogLevel},
		{"zero width", "capture: {width: 0}", ErrInvalidCapture},
		{"negative fps", "capture: {fps: -5}", ErrInvalidCapture},
		{"negative timeout", "capture: {init_timeout: -1s}", ErrInvalidCapture},
		{"mode", "capture: {mode: surface}", ErrInvalidMode},
		{"format", "capture: {format: rgba}", ErrInvalidFormat},
		{"empty address", "sink: {address: ''}", ErrInvalidSink},
		{"payload type", "sink: {payload_type: 200}", ErrInvalidSink},
		{"mtu", "sink: {mtu: 20}", ErrInvalidSink},
		{"effect name", "effects: [{name: ' '}]", ErrEmptyEffectName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cfg)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("capture: [not, a, map"))
	assert.ErrorContains(t, err, "decode yaml")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  mode: texture\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeTexture, cfg.Capture.Mode)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
