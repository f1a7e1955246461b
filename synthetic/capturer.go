// Package synthetic provides a capture source that renders a moving test
// pattern on its own capture thread.
//
// Capturer plays both roles a camera stack normally splits: it is the
// capture.Capturer the session controls, and the capture.TextureHelper that
// owns the capture thread and takes texture frames back.
//
//	c := synthetic.NewCapturer(synthetic.WithFormat(capture.FormatNV21))
//	proxy, _ := capture.NewObserverProxy(c, consumer, hook)
//	c.Initialize(proxy)
//	c.StartCapture(640, 480, 30)
package synthetic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/opd-ai/videoeffector/looper"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var (
	// ErrNoObserver indicates capture was started before Initialize.
	ErrNoObserver = errors.New("capturer has no observer")

	// ErrDisposed indicates the capturer was disposed.
	ErrDisposed = errors.New("capturer is disposed")

	// ErrSwitchPending indicates a camera switch is already in progress.
	ErrSwitchPending = errors.New("camera switch already in progress")
)

// Option customizes a Capturer.
type Option func(*Capturer)

// WithTextureFrames makes the capturer emit texture frames instead of
// byte-buffer frames.
func WithTextureFrames() Option {
	return func(c *Capturer) { c.texture = true }
}

// WithFormat sets the layout of byte-buffer frames.
func WithFormat(format capture.PixelFormat) Option {
	return func(c *Capturer) { c.format = format }
}

// WithRotation sets the rotation reported with every frame.
func WithRotation(degrees int) Option {
	return func(c *Capturer) { c.rotation = degrees }
}

// Stats is a snapshot of Capturer counters.
type Stats struct {
	BufferFrames     uint64
	TextureFrames    uint64
	TexturesReturned uint64
}

// Capturer renders test frames at a fixed rate.
type Capturer struct {
	thread   *looper.Looper
	texture  bool
	format   capture.PixelFormat
	rotation int
	epoch    time.Time

	mu        sync.Mutex
	observer  capture.Observer
	width     int
	height    int
	fps       int
	running   bool
	disposed  bool
	back      bool
	switching bool
	stop      chan struct{}
	stopped   chan struct{}
	frameNo   uint64

	bufferFrames     atomic.Uint64
	textureFrames    atomic.Uint64
	texturesReturned atomic.Uint64
}

var (
	_ capture.Capturer      = (*Capturer)(nil)
	_ capture.TextureHelper = (*Capturer)(nil)
)

// NewCapturer creates a capturer and starts its capture thread.
func NewCapturer(opts ...Option) *Capturer {
	c := &Capturer{
		thread: looper.New("synthetic-capture"),
		format: capture.FormatI420,
		epoch:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	logrus.WithFields(logrus.Fields{
		"function": "synthetic.NewCapturer",
		"texture":  c.texture,
		"format":   c.format.String(),
	}).Info("Synthetic capturer created")

	return c
}

// Thread returns the capture thread.
func (c *Capturer) Thread() capture.Thread {
	return c.thread
}

// Looper returns the capture thread with its full API.
func (c *Capturer) Looper() *looper.Looper {
	return c.thread
}

// ReturnTextureFrame takes a texture back. Returning more textures than
// frames were captured indicates a double return and is logged.
func (c *Capturer) ReturnTextureFrame() {
	returned := c.texturesReturned.Inc()
	produced := c.bufferFrames.Load() + c.textureFrames.Load()
	if returned > produced {
		logrus.WithFields(logrus.Fields{
			"function": "Capturer.ReturnTextureFrame",
			"returned": returned,
			"produced": produced,
		}).Error("Texture frame returned more often than captured")
	}
}

// Initialize sets the observer that receives frames.
func (c *Capturer) Initialize(observer capture.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// StartCapture reports capture start on the capture thread and begins
// emitting frames.
func (c *Capturer) StartCapture(width, height, fps int) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("%w: %dx%d@%d", capture.ErrInvalidFormat, width, height, fps)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	if c.observer == nil {
		return ErrNoObserver
	}
	if c.running {
		return nil
	}

	c.width, c.height, c.fps = width, height, fps
	observer := c.observer
	if err := c.thread.Post(func() { observer.OnCapturerStarted(true) }); err != nil {
		return fmt.Errorf("post capture start: %w", err)
	}
	c.startTickerLocked()
	c.running = true

	logrus.WithFields(logrus.Fields{
		"function": "Capturer.StartCapture",
		"width":    width,
		"height":   height,
		"fps":      fps,
	}).Info("Synthetic capture started")

	return nil
}

// StopCapture stops emitting frames and waits until the observer has been
// told capture stopped.
func (c *Capturer) StopCapture() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stopped := c.stopTickerLocked()
	observer := c.observer
	c.mu.Unlock()

	waitTicker(stopped)

	done := make(chan struct{})
	if err := c.thread.Post(func() {
		observer.OnCapturerStopped()
		close(done)
	}); err != nil {
		return fmt.Errorf("post capture stop: %w", err)
	}
	<-done

	logrus.WithFields(logrus.Fields{
		"function": "Capturer.StopCapture",
	}).Info("Synthetic capture stopped")

	return nil
}

// ChangeCaptureFormat switches resolution and rate, restarting the frame
// clock if capture is running.
func (c *Capturer) ChangeCaptureFormat(width, height, fps int) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("%w: %dx%d@%d", capture.ErrInvalidFormat, width, height, fps)
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.width, c.height = width, height
	restart := c.running && fps != c.fps
	c.fps = fps
	if !restart {
		c.mu.Unlock()
		return nil
	}
	stopped := c.stopTickerLocked()
	c.mu.Unlock()

	waitTicker(stopped)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.stop == nil {
		c.startTickerLocked()
	}
	return nil
}

// Dispose stops capture and shuts the capture thread down.
func (c *Capturer) Dispose() error {
	stopErr := c.StopCapture()

	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()

	c.thread.Quit()
	<-c.thread.Done()
	return stopErr
}

// SwitchCamera flips between the front and back pattern sources on the
// capture thread. done, if not nil, is called there with the new facing once
// the switch has taken effect.
func (c *Capturer) SwitchCamera(done capture.CameraSwitchDone) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	if c.switching {
		return ErrSwitchPending
	}
	c.switching = true

	err := c.thread.Post(func() {
		c.mu.Lock()
		c.back = !c.back
		c.switching = false
		front := !c.back
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "Capturer.SwitchCamera",
			"front":    front,
		}).Info("Camera switched")

		if done != nil {
			done(front, nil)
		}
	})
	if err != nil {
		c.switching = false
		return fmt.Errorf("post camera switch: %w", err)
	}
	return nil
}

// IsFrontFacing reports which pattern source is active.
func (c *Capturer) IsFrontFacing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.back
}

// CaptureOne renders and delivers a single frame on the capture thread and
// waits for the observer to return.
func (c *Capturer) CaptureOne() error {
	c.mu.Lock()
	if c.observer == nil {
		c.mu.Unlock()
		return ErrNoObserver
	}
	if c.width == 0 || c.height == 0 {
		c.width, c.height = 64, 48
	}
	c.mu.Unlock()

	done := make(chan struct{})
	if err := c.thread.Post(func() {
		c.emit()
		close(done)
	}); err != nil {
		return err
	}
	<-done
	return nil
}

// Stats returns a snapshot of the capturer counters.
func (c *Capturer) Stats() Stats {
	return Stats{
		BufferFrames:     c.bufferFrames.Load(),
		TextureFrames:    c.textureFrames.Load(),
		TexturesReturned: c.texturesReturned.Load(),
	}
}

// stopTickerLocked signals the running ticker, if any, and returns a channel
// closed once its goroutine has exited.
func (c *Capturer) stopTickerLocked() <-chan struct{} {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	stopped := c.stopped
	c.stop, c.stopped = nil, nil
	return stopped
}

func waitTicker(stopped <-chan struct{}) {
	if stopped != nil {
		<-stopped
	}
}

func (c *Capturer) startTickerLocked() {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	c.stop, c.stopped = stop, stopped
	interval := time.Second / time.Duration(c.fps)

	go func() {
		defer close(stopped)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := c.thread.Post(c.emit); err != nil {
					return
				}
			}
		}
	}()
}

// emit runs on the capture thread.
func (c *Capturer) emit() {
	c.mu.Lock()
	observer := c.observer
	width, height := c.width, c.height
	back := c.back
	c.frameNo++
	n := c.frameNo
	c.mu.Unlock()

	if observer == nil {
		return
	}
	timestamp := time.Since(c.epoch).Nanoseconds()

	if c.texture {
		c.textureFrames.Inc()
		capture.Deliver(observer, capture.TextureFrame{
			Width:           width,
			Height:          height,
			TextureID:       int(n),
			TransformMatrix: identityMatrix,
			Rotation:        c.rotation,
			Timestamp:       timestamp,
		})
		return
	}

	data := Pattern(width, height, c.format, n)
	if back {
		data = MirroredPattern(width, height, c.format, n)
	}
	c.bufferFrames.Inc()
	capture.Deliver(observer, capture.ByteBufferFrame{
		Data:      data,
		Format:    c.format,
		Width:     width,
		Height:    height,
		Rotation:  c.rotation,
		Timestamp: timestamp,
	})
}

var identityMatrix = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}
