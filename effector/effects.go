package effector

import (
	"fmt"
)

// Effect transforms an image.
type Effect interface {
	// Apply returns the transformed image. The input is left untouched.
	Apply(img *Image) (*Image, error)
	// Name identifies the effect and its parameters.
	Name() string
}

// EffectChain applies effects in order. It is not safe for concurrent use.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates a chain with the given effects.
func NewEffectChain(effects ...Effect) *EffectChain {
	return &EffectChain{
		effects: append([]Effect(nil), effects...),
	}
}

// Add appends an effect to the chain.
func (ec *EffectChain) Add(effect Effect) {
	ec.effects = append(ec.effects, effect)
}

// Len returns the number of effects in the chain.
func (ec *EffectChain) Len() int {
	return len(ec.effects)
}

// Names returns the effect names in order.
func (ec *EffectChain) Names() []string {
	names := make([]string, len(ec.effects))
	for i, effect := range ec.effects {
		names[i] = effect.Name()
	}
	return names
}

// Clear removes all effects.
func (ec *EffectChain) Clear() {
	ec.effects = ec.effects[:0]
}

// Apply runs img through every effect. An empty chain returns a copy.
func (ec *EffectChain) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	current := img.Clone()
	for i, effect := range ec.effects {
		result, err := effect.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, effect.Name(), err)
		}
		current = result
	}
	return current, nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampFloatByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// BrightnessEffect shifts every luminance sample.
type BrightnessEffect struct {
	adjustment int
}

// NewBrightnessEffect creates a brightness shift in [-255, 255].
func NewBrightnessEffect(adjustment int) *BrightnessEffect {
	if adjustment < -255 {
		adjustment = -255
	}
	if adjustment > 255 {
		adjustment = 255
	}
	return &BrightnessEffect{adjustment: adjustment}
}

// Apply shifts the Y plane.
func (e *BrightnessEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	result := img.Clone()
	for i, sample := range result.Y {
		result.Y[i] = clampByte(int(sample) + e.adjustment)
	}
	return result, nil
}

// Name returns the effect name.
func (e *BrightnessEffect) Name() string {
	return fmt.Sprintf("Brightness(%+d)", e.adjustment)
}

// ContrastEffect scales luminance around mid-gray.
type ContrastEffect struct {
	factor float64
}

// NewContrastEffect creates a contrast factor in [0, 3]; 1 leaves the image unchanged.
func NewContrastEffect(factor float64) *ContrastEffect {
	if factor < 0 {
		factor = 0
	}
	if factor > 3 {
		factor = 3
	}
	return &ContrastEffect{factor: factor}
}

// Apply scales the Y plane around 128.
func (e *ContrastEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	const midpoint = 128.0

	result := img.Clone()
	for i, sample := range result.Y {
		result.Y[i] = clampFloatByte(midpoint + (float64(sample)-midpoint)*e.factor)
	}
	return result, nil
}

// Name returns the effect name.
func (e *ContrastEffect) Name() string {
	return fmt.Sprintf("Contrast(%.2f)", e.factor)
}

// GrayscaleEffect drops all color information.
type GrayscaleEffect struct{}

// NewGrayscaleEffect creates a grayscale effect.
func NewGrayscaleEffect() *GrayscaleEffect {
	return &GrayscaleEffect{}
}

// Apply sets both chroma planes to neutral.
func (e *GrayscaleEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	result := img.Clone()
	for i := range result.U {
		result.U[i] = 128
	}
	for i := range result.V {
		result.V[i] = 128
	}
	return result, nil
}

// Name returns the effect name.
func (e *GrayscaleEffect) Name() string {
	return "Grayscale"
}

// BlurEffect is a box blur over the luminance plane.
type BlurEffect struct {
	radius int
}

// NewBlurEffect creates a box blur with radius in [1, 5].
func NewBlurEffect(radius int) *BlurEffect {
	if radius < 1 {
		radius = 1
	}
	if radius > 5 {
		radius = 5
	}
	return &BlurEffect{radius: radius}
}

// Apply averages each luminance sample with its neighbours inside the radius.
func (e *BlurEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	result := img.Clone()
	width, height := img.Width, img.Height
	src := img.Y

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum, count := 0, 0
			for dy := -e.radius; dy <= e.radius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= height {
					continue
				}
				for dx := -e.radius; dx <= e.radius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= width {
						continue
					}
					sum += int(src[ny*width+nx])
					count++
				}
			}
			result.Y[y*width+x] = byte(sum / count)
		}
	}
	return result, nil
}

// Name returns the effect name.
func (e *BlurEffect) Name() string {
	return fmt.Sprintf("Blur(%d)", e.radius)
}

// SharpenEffect emphasizes luminance edges with a 3x3 kernel. Border samples
// are left as they are.
type SharpenEffect struct {
	strength float64
}

// NewSharpenEffect creates a sharpening effect with strength in [0, 2].
func NewSharpenEffect(strength float64) *SharpenEffect {
	if strength < 0 {
		strength = 0
	}
	if strength > 2 {
		strength = 2
	}
	return &SharpenEffect{strength: strength}
}

// Apply sharpens the Y plane.
func (e *SharpenEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	result := img.Clone()
	width, height := img.Width, img.Height
	src := img.Y

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			idx := y*width + x
			sum := float64(src[idx]) * (1 + 4*e.strength)
			sum -= float64(src[idx-width]) * e.strength
			sum -= float64(src[idx+width]) * e.strength
			sum -= float64(src[idx-1]) * e.strength
			sum -= float64(src[idx+1]) * e.strength
			result.Y[idx] = clampFloatByte(sum)
		}
	}
	return result, nil
}

// Name returns the effect name.
func (e *SharpenEffect) Name() string {
	return fmt.Sprintf("Sharpen(%.2f)", e.strength)
}

// ColorTemperatureEffect warms (positive) or cools (negative) the image by
// trading blue-difference for red-difference chroma.
type ColorTemperatureEffect struct {
	temperature int
}

// NewColorTemperatureEffect creates a temperature shift in [-100, 100].
func NewColorTemperatureEffect(temperature int) *ColorTemperatureEffect {
	if temperature < -100 {
		temperature = -100
	}
	if temperature > 100 {
		temperature = 100
	}
	return &ColorTemperatureEffect{temperature: temperature}
}

// Apply shifts U down and V up for warm temperatures, the reverse for cool.
func (e *ColorTemperatureEffect) Apply(img *Image) (*Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	result := img.Clone()
	if e.temperature == 0 {
		return result, nil
	}

	// 100 maps to a 40-level chroma shift.
	shift := e.temperature * 40 / 100
	if shift == 0 {
		if e.temperature > 0 {
			shift = 1
		} else {
			shift = -1
		}
	}
	for i, sample := range result.U {
		result.U[i] = clampByte(int(sample) - shift)
	}
	for i, sample := range result.V {
		result.V[i] = clampByte(int(sample) + shift)
	}
	return result, nil
}

// Name returns the effect name.
func (e *ColorTemperatureEffect) Name() string {
	switch {
	case e.temperature > 0:
		return fmt.Sprintf("ColorTemperature(Warm%+d)", e.temperature)
	case e.temperature < 0:
		return fmt.Sprintf("ColorTemperature(Cool%+d)", e.temperature)
	default:
		return "ColorTemperature(Neutral)"
	}
}
