package synthetic

import "github.com/opd-ai/videoeffector/capture"

// Pattern renders frame n of a diagonal luminance ramp that scrolls one pixel
// per frame, with chroma varying across the width. Dimensions must be positive.
func Pattern(width, height int, format capture.PixelFormat, n uint64) []byte {
	cw, ch := (width+1)/2, (height+1)/2
	ySize := width * height
	out := make([]byte, ySize+2*cw*ch)

	shift := int(n % 256)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = byte((x + y + shift) % 256)
		}
	}

	chroma := out[ySize:]
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			u := byte(64 + (x*128)/cw)
			v := byte(192 - (y*128)/ch)
			i := y*cw + x
			switch format {
			case capture.FormatNV21:
				chroma[2*i] = v
				chroma[2*i+1] = u
			default:
				chroma[i] = u
				chroma[cw*ch+i] = v
			}
		}
	}
	return out
}

// MirroredPattern renders Pattern with its luminance rows flipped
// horizontally. The back camera of Capturer uses it.
func MirroredPattern(width, height int, format capture.PixelFormat, n uint64) []byte {
	out := Pattern(width, height, format, n)
	for y := 0; y < height; y++ {
		row := out[y*width : (y+1)*width]
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
	return out
}
