package capture

import "errors"

// Binding errors.
var (
	// ErrNilTextureHelper indicates the proxy was built without a capture source.
	ErrNilTextureHelper = errors.New("texture helper cannot be nil")

	// ErrNilObserver indicates the proxy was built without an original observer.
	ErrNilObserver = errors.New("observer cannot be nil")

	// ErrNilEffectHook indicates the proxy was built without an effect hook.
	ErrNilEffectHook = errors.New("effect hook cannot be nil")

	// ErrNilThread indicates the texture helper did not expose a capture thread.
	ErrNilThread = errors.New("capture thread cannot be nil")
)

// Initialization errors.
var (
	// ErrHookInit indicates the effect hook failed to initialize on the capture thread.
	ErrHookInit = errors.New("effect hook initialization failed")

	// ErrInitTimeout indicates the capture thread did not run hook initialization in time.
	ErrInitTimeout = errors.New("effect hook initialization timed out")
)

// Session errors.
var (
	// ErrNilCapturer indicates a session was created without a capturer.
	ErrNilCapturer = errors.New("capturer cannot be nil")

	// ErrSessionClosed indicates the session has already been closed.
	ErrSessionClosed = errors.New("capture session is closed")

	// ErrInvalidFormat indicates a capture format with non-positive dimensions or rate.
	ErrInvalidFormat = errors.New("invalid capture format")
)
