package effector

import (
	"fmt"

	"github.com/opd-ai/videoeffector/capture"
)

// Image is a YUV 4:2:0 frame split into planes. U and V are subsampled by two
// in both directions, rounding up for odd dimensions.
type Image struct {
	Width  int
	Height int
	Y      []byte
	U      []byte
	V      []byte
}

// NewImage allocates a neutral gray image.
func NewImage(width, height int) *Image {
	cw, ch := chromaSize(width, height)
	img := &Image{
		Width:  width,
		Height: height,
		Y:      make([]byte, width*height),
		U:      make([]byte, cw*ch),
		V:      make([]byte, cw*ch),
	}
	for i := range img.U {
		img.U[i] = 128
		img.V[i] = 128
	}
	return img
}

// ChromaWidth returns the width of the U and V planes.
func (img *Image) ChromaWidth() int {
	cw, _ := chromaSize(img.Width, img.Height)
	return cw
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	return &Image{
		Width:  img.Width,
		Height: img.Height,
		Y:      append([]byte(nil), img.Y...),
		U:      append([]byte(nil), img.U...),
		V:      append([]byte(nil), img.V...),
	}
}

func chromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// FrameSize returns the number of bytes a YUV 4:2:0 frame occupies. I420 and
// NV21 have the same size.
func FrameSize(width, height int) int {
	cw, ch := chromaSize(width, height)
	return width*height + 2*cw*ch
}

// Unpack splits a buffer in the given layout into planes. The planes are
// copies; data is not retained.
func Unpack(data []byte, width, height int, layout capture.PixelFormat) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	need := FrameSize(width, height)
	if len(data) < need {
		return nil, fmt.Errorf("%w: got %d bytes, need %d for %dx%d", ErrInvalidBuffer, len(data), need, width, height)
	}

	ySize := width * height
	cw, ch := chromaSize(width, height)
	cSize := cw * ch

	img := &Image{
		Width:  width,
		Height: height,
		Y:      append([]byte(nil), data[:ySize]...),
	}

	switch layout {
	case capture.FormatI420:
		img.U = append([]byte(nil), data[ySize:ySize+cSize]...)
		img.V = append([]byte(nil), data[ySize+cSize:ySize+2*cSize]...)
	case capture.FormatNV21:
		img.U = make([]byte, cSize)
		img.V = make([]byte, cSize)
		vu := data[ySize : ySize+2*cSize]
		for i := 0; i < cSize; i++ {
			img.V[i] = vu[2*i]
			img.U[i] = vu[2*i+1]
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayout, layout)
	}

	return img, nil
}

// Pack writes the image into a new buffer in the given layout.
func Pack(img *Image, layout capture.PixelFormat) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	ySize := img.Width * img.Height
	cw, ch := chromaSize(img.Width, img.Height)
	cSize := cw * ch
	if len(img.Y) < ySize || len(img.U) < cSize || len(img.V) < cSize {
		return nil, fmt.Errorf("%w: planes too small for %dx%d", ErrInvalidBuffer, img.Width, img.Height)
	}

	out := make([]byte, ySize+2*cSize)
	copy(out, img.Y[:ySize])

	switch layout {
	case capture.FormatI420:
		copy(out[ySize:], img.U[:cSize])
		copy(out[ySize+cSize:], img.V[:cSize])
	case capture.FormatNV21:
		vu := out[ySize:]
		for i := 0; i < cSize; i++ {
			vu[2*i] = img.V[i]
			vu[2*i+1] = img.U[i]
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayout, layout)
	}

	return out, nil
}
