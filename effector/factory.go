package effector

import (
	"fmt"
	"strings"

	"github.com/opd-ai/videoeffector/config"
)

// FromConfig builds effects from configuration entries, in order.
//
// Amount meaning per effect name:
//   - brightness: luminance shift
//   - contrast: factor, 1 is unchanged
//   - grayscale: ignored
//   - blur: box radius
//   - gaussian_blur: Gaussian radius
//   - sharpen: strength
//   - color_temperature: -100 (cool) to 100 (warm)
//   - pixelate: block size in pixels
func FromConfig(entries []config.Effect) ([]Effect, error) {
	effects := make([]Effect, 0, len(entries))
	for i, entry := range entries {
		effect, err := fromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		effects = append(effects, effect)
	}
	return effects, nil
}

func fromEntry(entry config.Effect) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(entry.Name)) {
	case "brightness":
		return NewBrightnessEffect(int(entry.Amount)), nil
	case "contrast":
		return NewContrastEffect(entry.Amount), nil
	case "grayscale":
		return NewGrayscaleEffect(), nil
	case "blur":
		return NewBlurEffect(int(entry.Amount)), nil
	case "gaussian_blur":
		return NewGaussianBlurEffect(entry.Amount), nil
	case "sharpen":
		return NewSharpenEffect(entry.Amount), nil
	case "color_temperature":
		return NewColorTemperatureEffect(int(entry.Amount)), nil
	case "pixelate":
		return NewPixelateEffect(int(entry.Amount)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, entry.Name)
	}
}
