package effector

import "errors"

var (
	// ErrNilHelper indicates Init was called without a capture source.
	ErrNilHelper = errors.New("texture helper cannot be nil")

	// ErrAlreadyInitialized indicates Init was called twice.
	ErrAlreadyInitialized = errors.New("effector already initialized")

	// ErrNotInitialized indicates a frame was processed before Init.
	ErrNotInitialized = errors.New("effector not initialized")

	// ErrInvalidDimensions indicates non-positive frame dimensions.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")

	// ErrInvalidBuffer indicates a buffer too small for the frame dimensions.
	ErrInvalidBuffer = errors.New("buffer too small for frame")

	// ErrUnsupportedLayout indicates a pixel layout the effector cannot split.
	ErrUnsupportedLayout = errors.New("unsupported pixel layout")

	// ErrNilImage indicates an effect received no image.
	ErrNilImage = errors.New("input image cannot be nil")

	// ErrUnknownEffect indicates a configured effect name with no implementation.
	ErrUnknownEffect = errors.New("unknown effect")
)
