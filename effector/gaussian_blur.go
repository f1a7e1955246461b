package effector

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
	"go.uber.org/atomic"
)

// GaussianBlurEffect blurs luminance and chroma with a Gaussian kernel. The
// radius may be changed while frames are flowing.
type GaussianBlurEffect struct {
	Radius atomic.Float64
}

var _ Effect = (*GaussianBlurEffect)(nil)

// NewGaussianBlurEffect creates a Gaussian blur. A zero radius is a no-op.
func NewGaussianBlurEffect(radius float64) *GaussianBlurEffect {
	if radius < 0 {
		radius = 0
	}
	e := &GaussianBlurEffect{}
	e.Radius.Store(radius)
	return e
}

// Apply blurs the image through an RGBA round trip.
func (e *GaussianBlurEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	radius := e.Radius.Load()
	if radius <= 0 {
		return img.Clone(), nil
	}

	blurred := blur.Gaussian(ycbcrView(img), radius)
	return fromRGBA(blurred, img.Width, img.Height), nil
}

// Name returns the effect name.
func (e *GaussianBlurEffect) Name() string {
	return fmt.Sprintf("GaussianBlur(%.2f)", e.Radius.Load())
}

// ycbcrView wraps the planes of img without copying.
func ycbcrView(img *Image) *image.YCbCr {
	return &image.YCbCr{
		Y:              img.Y,
		Cb:             img.U,
		Cr:             img.V,
		YStride:        img.Width,
		CStride:        img.ChromaWidth(),
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, img.Width, img.Height),
	}
}

// fromRGBA converts back to 4:2:0, taking chroma from the top-left sample of
// each 2x2 block.
func fromRGBA(src *image.RGBA, width, height int) *Image {
	out := NewImage(width, height)
	cw := out.ChromaWidth()
	bounds := src.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := src.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			out.Y[y*width+x] = yy
			if x%2 == 0 && y%2 == 0 {
				ci := (y/2)*cw + x/2
				out.U[ci] = cb
				out.V[ci] = cr
			}
		}
	}
	return out
}
