package effector

import "fmt"

// PixelateEffect shrinks the image by the block size with bilinear filtering
// and blows it back up with nearest-neighbour sampling.
type PixelateEffect struct {
	block int
}

// NewPixelateEffect creates a pixelate effect. block is clamped to [2, 32].
func NewPixelateEffect(block int) *PixelateEffect {
	if block < 2 {
		block = 2
	}
	if block > 32 {
		block = 32
	}
	return &PixelateEffect{block: block}
}

// Apply pixelates every plane. Chroma uses half the block size.
func (e *PixelateEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	result := img.Clone()
	cw, ch := chromaSize(img.Width, img.Height)
	chromaBlock := e.block / 2

	if err := pixelatePlane(img.Y, result.Y, img.Width, img.Height, e.block); err != nil {
		return nil, fmt.Errorf("luma: %w", err)
	}
	if err := pixelatePlane(img.U, result.U, cw, ch, chromaBlock); err != nil {
		return nil, fmt.Errorf("chroma u: %w", err)
	}
	if err := pixelatePlane(img.V, result.V, cw, ch, chromaBlock); err != nil {
		return nil, fmt.Errorf("chroma v: %w", err)
	}
	return result, nil
}

// Name returns the effect name with its block size.
func (e *PixelateEffect) Name() string {
	return fmt.Sprintf("Pixelate(%d)", e.block)
}

func pixelatePlane(src, dst []byte, width, height, block int) error {
	if block < 2 {
		copy(dst, src)
		return nil
	}
	smallW := (width + block - 1) / block
	smallH := (height + block - 1) / block
	small := make([]byte, smallW*smallH)

	if err := scalePlane(src, width, height, small, smallW, smallH); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		sy := y * smallH / height
		for x := 0; x < width; x++ {
			dst[y*width+x] = small[sy*smallW+x*smallW/width]
		}
	}
	return nil
}

// scalePlane resamples a tightly packed plane using bilinear interpolation.
func scalePlane(src []byte, srcWidth, srcHeight int, dst []byte, dstWidth, dstHeight int) error {
	if len(src) < srcWidth*srcHeight {
		return fmt.Errorf("%w: source %d < %d", ErrInvalidBuffer, len(src), srcWidth*srcHeight)
	}
	if len(dst) < dstWidth*dstHeight {
		return fmt.Errorf("%w: destination %d < %d", ErrInvalidBuffer, len(dst), dstWidth*dstHeight)
	}

	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := min(y1+1, srcHeight-1)
		fy := srcY - float64(y1)

		for x := 0; x < dstWidth; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := min(x1+1, srcWidth-1)
			fx := srcX - float64(x1)

			p11 := float64(src[y1*srcWidth+x1])
			p12 := float64(src[y1*srcWidth+x2])
			p21 := float64(src[y2*srcWidth+x1])
			p22 := float64(src[y2*srcWidth+x2])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			dst[y*dstWidth+x] = byte(top*(1-fy) + bottom*fy + 0.5)
		}
	}
	return nil
}
