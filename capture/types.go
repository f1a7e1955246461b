package capture

import (
	"context"
	"fmt"
)

// PixelFormat identifies the memory layout of a byte-buffer frame.
type PixelFormat uint8

const (
	// FormatI420 is planar YUV 4:2:0: a full Y plane followed by U and V quarter planes.
	FormatI420 PixelFormat = iota
	// FormatNV21 is semi-planar YUV 4:2:0: a full Y plane followed by interleaved V/U pairs.
	FormatNV21
)

// String returns the conventional name of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case FormatI420:
		return "I420"
	case FormatNV21:
		return "NV21"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// Frame is a captured frame. It is either a ByteBufferFrame or a TextureFrame.
type Frame interface {
	// Size returns the frame dimensions in pixels.
	Size() (width, height int)
	isFrame()
}

// ByteBufferFrame is a frame whose pixels are addressable from the CPU.
//
// A frame is only valid for the duration of the callback it is passed to.
type ByteBufferFrame struct {
	Data      []byte
	Format    PixelFormat
	Width     int
	Height    int
	Rotation  int   // degrees, clockwise
	Timestamp int64 // monotonic, nanoseconds
}

// Size returns the frame dimensions.
func (f ByteBufferFrame) Size() (int, int) { return f.Width, f.Height }

func (ByteBufferFrame) isFrame() {}

// TextureFrame is a frame whose pixels live in a GPU texture.
type TextureFrame struct {
	Width           int
	Height          int
	TextureID       int
	TransformMatrix [16]float32
	Rotation        int
	Timestamp       int64
}

// Size returns the frame dimensions.
func (f TextureFrame) Size() (int, int) { return f.Width, f.Height }

func (TextureFrame) isFrame() {}

// Observer receives capture lifecycle events and captured frames.
type Observer interface {
	OnCapturerStarted(success bool)
	OnCapturerStopped()
	OnByteBufferFrameCaptured(frame ByteBufferFrame)
	OnTextureFrameCaptured(frame TextureFrame)
}

// Deliver dispatches a captured frame to the observer callback matching its
// representation.
// Nil frames are ignored.
func Deliver(o Observer, f Frame) {
	switch frame := f.(type) {
	case ByteBufferFrame:
		o.OnByteBufferFrameCaptured(frame)
	case *ByteBufferFrame:
		if frame != nil {
			o.OnByteBufferFrameCaptured(*frame)
		}
	case TextureFrame:
		o.OnTextureFrameCaptured(frame)
	case *TextureFrame:
		if frame != nil {
			o.OnTextureFrameCaptured(*frame)
		}
	}
}

// Thread runs tasks serially on the capture goroutine.
type Thread interface {
	// InvokeAtFront runs fn ahead of any queued work and waits for it to
	// finish. It returns fn's error, or the context error if fn never started.
	InvokeAtFront(ctx context.Context, fn func() error) error
}

// TextureHelper is the capture source seen by the proxy and the effect hook:
// it owns the capture thread and takes texture frames back once consumed.
type TextureHelper interface {
	Thread() Thread
	ReturnTextureFrame()
}

// EffectHook rewrites byte-buffer frames.
type EffectHook interface {
	// Init prepares the hook. It is always called on the capture thread.
	Init(helper TextureHelper) error
	// NeedsProcessing reports whether the next frame should go through
	// ProcessByteBufferFrame.
	NeedsProcessing() bool
	// ProcessByteBufferFrame returns a replacement buffer for the frame.
	ProcessByteBufferFrame(data []byte, width, height, rotation int, timestamp int64) ([]byte, error)
}

// CameraSwitchDone receives the outcome of a camera switch: the new facing on
// success, or the error that prevented it.
type CameraSwitchDone func(front bool, err error)

// Capturer is a controllable frame producer.
type Capturer interface {
	StartCapture(width, height, fps int) error
	StopCapture() error
	ChangeCaptureFormat(width, height, fps int) error
	// SwitchCamera toggles between front and back cameras. A nil error means
	// the switch was accepted; done, if not nil, reports the outcome later.
	SwitchCamera(done CameraSwitchDone) error
	Dispose() error
}
