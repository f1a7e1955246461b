package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// ProxyOption customizes an ObserverProxy.
type ProxyOption func(*proxyOptions)

type proxyOptions struct {
	initTimeout  time.Duration
	errorHandler func(frame ByteBufferFrame, err error)
}

// WithInitTimeout bounds how long NewObserverProxy waits for the capture
// thread to run hook initialization. Zero or negative waits forever.
func WithInitTimeout(timeout time.Duration) ProxyOption {
	return func(o *proxyOptions) {
		o.initTimeout = timeout
	}
}

// WithProcessingErrorHandler registers a callback invoked on the capture
// thread whenever the effect hook fails to process a frame.
func WithProcessingErrorHandler(handler func(frame ByteBufferFrame, err error)) ProxyOption {
	return func(o *proxyOptions) {
		o.errorHandler = handler
	}
}

// ProxyStats is a point-in-time snapshot of ObserverProxy counters.
type ProxyStats struct {
	BufferFrames     uint64
	ProcessedFrames  uint64
	TextureFrames    uint64
	TexturesReturned uint64
	ProcessingErrors uint64
}

// ObserverProxy forwards capture callbacks to the original observer, letting
// an EffectHook replace byte-buffer frames on the way.
//
// The binding between helper, observer and hook is fixed at construction.
type ObserverProxy struct {
	helper   TextureHelper
	observer Observer
	hook     EffectHook
	onError  func(frame ByteBufferFrame, err error)

	bufferFrames     atomic.Uint64
	processedFrames  atomic.Uint64
	textureFrames    atomic.Uint64
	texturesReturned atomic.Uint64
	processingErrors atomic.Uint64
}

var _ Observer = (*ObserverProxy)(nil)

// NewObserverProxy binds observer and hook to the capture source behind helper.
//
// Hook initialization runs on the capture thread ahead of any queued work, and
// NewObserverProxy does not return until it has finished. Unless
// WithInitTimeout is given, an unresponsive capture thread blocks forever.
func NewObserverProxy(helper TextureHelper, observer Observer, hook EffectHook, opts ...ProxyOption) (*ObserverProxy, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewObserverProxy",
	}).Info("Creating capture observer proxy")

	if helper == nil {
		return nil, ErrNilTextureHelper
	}
	if observer == nil {
		return nil, ErrNilObserver
	}
	if hook == nil {
		return nil, ErrNilEffectHook
	}

	options := &proxyOptions{}
	for _, opt := range opts {
		opt(options)
	}

	thread := helper.Thread()
	if thread == nil {
		return nil, ErrNilThread
	}

	if err := initHook(thread, helper, hook, options.initTimeout); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "NewObserverProxy",
			"init_timeout": options.initTimeout,
			"error":        err.Error(),
		}).Error("Effect hook initialization failed")
		return nil, err
	}

	proxy := &ObserverProxy{
		helper:   helper,
		observer: observer,
		hook:     hook,
		onError:  options.errorHandler,
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewObserverProxy",
		"init_timeout": options.initTimeout,
	}).Info("Capture observer proxy created successfully")

	return proxy, nil
}

// initHook runs hook.Init on the capture thread and waits for it.
func initHook(thread Thread, helper TextureHelper, hook EffectHook, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := thread.InvokeAtFront(ctx, func() error {
		if err := hook.Init(helper); err != nil {
			return fmt.Errorf("%w: %w", ErrHookInit, err)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrHookInit):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w after %v: %w", ErrInitTimeout, timeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrHookInit, err)
	}
}

// OnCapturerStarted forwards to the original observer.
func (p *ObserverProxy) OnCapturerStarted(success bool) {
	p.observer.OnCapturerStarted(success)
}

// OnCapturerStopped forwards to the original observer.
func (p *ObserverProxy) OnCapturerStopped() {
	p.observer.OnCapturerStopped()
}

// OnByteBufferFrameCaptured offers the frame to the effect hook.
//
// When the hook wants the frame, the replacement is forwarded and the texture
// frame is then returned to the capture source, exactly once. Otherwise the
// frame is forwarded as captured and nothing is returned.
func (p *ObserverProxy) OnByteBufferFrameCaptured(frame ByteBufferFrame) {
	p.bufferFrames.Inc()

	logrus.WithFields(logrus.Fields{
		"function":  "ObserverProxy.OnByteBufferFrameCaptured",
		"width":     frame.Width,
		"height":    frame.Height,
		"rotation":  frame.Rotation,
		"timestamp": frame.Timestamp,
		"size":      len(frame.Data),
	}).Debug("Byte buffer frame captured")

	if !p.hook.NeedsProcessing() {
		p.observer.OnByteBufferFrameCaptured(frame)
		return
	}

	p.observer.OnByteBufferFrameCaptured(p.process(frame))
	p.helper.ReturnTextureFrame()
	p.texturesReturned.Inc()
}

// process returns the hook's replacement for frame, or frame itself when the
// hook fails.
func (p *ObserverProxy) process(frame ByteBufferFrame) ByteBufferFrame {
	filtered, err := p.hook.ProcessByteBufferFrame(frame.Data, frame.Width, frame.Height, frame.Rotation, frame.Timestamp)
	if err != nil {
		p.processingErrors.Inc()
		logrus.WithFields(logrus.Fields{
			"function":  "ObserverProxy.OnByteBufferFrameCaptured",
			"width":     frame.Width,
			"height":    frame.Height,
			"timestamp": frame.Timestamp,
			"error":     err.Error(),
		}).Warn("Effect processing failed, forwarding original frame")
		if p.onError != nil {
			p.onError(frame, err)
		}
		return frame
	}

	p.processedFrames.Inc()
	replaced := frame
	replaced.Data = filtered
	return replaced
}

// OnTextureFrameCaptured forwards to the original observer. Texture frames
// are never processed.
func (p *ObserverProxy) OnTextureFrameCaptured(frame TextureFrame) {
	p.textureFrames.Inc()
	p.observer.OnTextureFrameCaptured(frame)
}

// Stats returns a snapshot of the proxy counters.
func (p *ObserverProxy) Stats() ProxyStats {
	return ProxyStats{
		BufferFrames:     p.bufferFrames.Load(),
		ProcessedFrames:  p.processedFrames.Load(),
		TextureFrames:    p.textureFrames.Load(),
		TexturesReturned: p.texturesReturned.Load(),
		ProcessingErrors: p.processingErrors.Load(),
	}
}
