package effector

import (
	"fmt"
	"sync"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Option customizes a VideoEffector.
type Option func(*VideoEffector)

// WithLayout sets the pixel layout of the buffers the capturer delivers.
func WithLayout(layout capture.PixelFormat) Option {
	return func(ve *VideoEffector) {
		ve.layout = layout
	}
}

// WithEffects preloads the effect chain.
func WithEffects(effects ...Effect) Option {
	return func(ve *VideoEffector) {
		for _, effect := range effects {
			ve.chain.Add(effect)
		}
	}
}

// VideoEffector applies an effect chain to captured byte-buffer frames. It
// implements capture.EffectHook.
type VideoEffector struct {
	layout capture.PixelFormat

	mu     sync.RWMutex
	chain  *EffectChain
	helper capture.TextureHelper

	initialized atomic.Bool
	enabled     atomic.Bool
	processed   atomic.Uint64
}

var _ capture.EffectHook = (*VideoEffector)(nil)

// New creates an enabled effector for I420 buffers unless options say otherwise.
func New(opts ...Option) *VideoEffector {
	ve := &VideoEffector{
		layout: capture.FormatI420,
		chain:  NewEffectChain(),
	}
	ve.enabled.Store(true)
	for _, opt := range opts {
		opt(ve)
	}

	logrus.WithFields(logrus.Fields{
		"function": "effector.New",
		"layout":   ve.layout.String(),
		"effects":  ve.chain.Len(),
	}).Info("Video effector created")

	return ve
}

// Init records the capture source. It runs on the capture thread and may only
// be called once.
func (ve *VideoEffector) Init(helper capture.TextureHelper) error {
	if helper == nil {
		return ErrNilHelper
	}

	ve.mu.Lock()
	defer ve.mu.Unlock()

	if ve.initialized.Load() {
		return ErrAlreadyInitialized
	}
	ve.helper = helper
	ve.initialized.Store(true)

	logrus.WithFields(logrus.Fields{
		"function": "VideoEffector.Init",
		"layout":   ve.layout.String(),
	}).Info("Video effector initialized")

	return nil
}

// AddEffect appends an effect to the chain.
func (ve *VideoEffector) AddEffect(effect Effect) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.chain.Add(effect)

	logrus.WithFields(logrus.Fields{
		"function": "VideoEffector.AddEffect",
		"effect":   effect.Name(),
		"effects":  ve.chain.Len(),
	}).Debug("Effect added")
}

// ClearEffects removes every effect.
func (ve *VideoEffector) ClearEffects() {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.chain.Clear()
}

// Effects returns the names of the configured effects.
func (ve *VideoEffector) Effects() []string {
	ve.mu.RLock()
	defer ve.mu.RUnlock()
	return ve.chain.Names()
}

// Enable turns processing on.
func (ve *VideoEffector) Enable() { ve.enabled.Store(true) }

// Disable turns processing off; frames then pass through the proxy untouched.
func (ve *VideoEffector) Disable() { ve.enabled.Store(false) }

// IsEnabled reports whether processing is on.
func (ve *VideoEffector) IsEnabled() bool { return ve.enabled.Load() }

// Processed returns how many frames went through the chain.
func (ve *VideoEffector) Processed() uint64 { return ve.processed.Load() }

// NeedsProcessing reports whether the effector is initialized, enabled and
// has at least one effect.
func (ve *VideoEffector) NeedsProcessing() bool {
	if !ve.initialized.Load() || !ve.enabled.Load() {
		return false
	}
	ve.mu.RLock()
	defer ve.mu.RUnlock()
	return ve.chain.Len() > 0
}

// ProcessByteBufferFrame returns a new buffer holding the frame with all
// effects applied. data is not modified.
func (ve *VideoEffector) ProcessByteBufferFrame(data []byte, width, height, rotation int, timestamp int64) ([]byte, error) {
	if !ve.initialized.Load() {
		return nil, ErrNotInitialized
	}

	img, err := Unpack(data, width, height, ve.layout)
	if err != nil {
		return nil, fmt.Errorf("unpack frame: %w", err)
	}

	ve.mu.RLock()
	result, err := ve.chain.Apply(img)
	ve.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("apply effects: %w", err)
	}

	out, err := Pack(result, ve.layout)
	if err != nil {
		return nil, fmt.Errorf("pack frame: %w", err)
	}
	ve.processed.Inc()

	logrus.WithFields(logrus.Fields{
		"function":  "VideoEffector.ProcessByteBufferFrame",
		"width":     width,
		"height":    height,
		"rotation":  rotation,
		"timestamp": timestamp,
	}).Debug("Frame processed")

	return out, nil
}
