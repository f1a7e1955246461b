package capture

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session controls a Capturer for the lifetime of one capture session.
// It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	capturer  Capturer
	capturing bool
	closed    bool
}

// NewSession wraps capturer. The capturer must already be initialized with
// its observer.
func NewSession(capturer Capturer) (*Session, error) {
	if capturer == nil {
		return nil, ErrNilCapturer
	}
	return &Session{capturer: capturer}, nil
}

// Start begins capturing. It does nothing if capture is already running.
func (s *Session) Start(width, height, fps int) error {
	if err := validateFormat(width, height, fps); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.capturing {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.Start",
		"width":    width,
		"height":   height,
		"fps":      fps,
	}).Info("Starting capture")

	if err := s.capturer.StartCapture(width, height, fps); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	s.capturing = true
	return nil
}

// Stop ends capturing. It does nothing if capture is not running. If the
// capturer fails to stop, the session keeps reporting capture as running and
// Stop may be retried.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	if !s.capturing {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.Stop",
	}).Info("Stopping capture")

	if err := s.capturer.StopCapture(); err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	s.capturing = false
	return nil
}

// IsCapturing reports whether capture is running.
func (s *Session) IsCapturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// ChangeFormat switches the capture resolution and frame rate.
func (s *Session) ChangeFormat(width, height, fps int) error {
	if err := validateFormat(width, height, fps); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.capturer.ChangeCaptureFormat(width, height, fps); err != nil {
		return fmt.Errorf("change capture format: %w", err)
	}
	return nil
}

// SwitchCamera asks the capturer to toggle between front and back cameras.
// done, if not nil, is called with the outcome, usually on the capture thread.
func (s *Session) SwitchCamera(done CameraSwitchDone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.SwitchCamera",
	}).Info("Switching camera")

	if err := s.capturer.SwitchCamera(done); err != nil {
		return fmt.Errorf("switch camera: %w", err)
	}
	return nil
}

// Close stops capture and disposes the capturer. Further calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	stopErr := s.stopLocked()
	if err := s.capturer.Dispose(); err != nil {
		return fmt.Errorf("dispose capturer: %w", err)
	}
	s.capturing = false
	return stopErr
}

func validateFormat(width, height, fps int) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("%w: %dx%d@%d", ErrInvalidFormat, width, height, fps)
	}
	return nil
}
