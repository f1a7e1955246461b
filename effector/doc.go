// Package effector implements the effect hook used by capture.ObserverProxy.
//
// VideoEffector runs an EffectChain over YUV 4:2:0 byte buffers coming off a
// capturer. Frames are split into an Image (Y, U, V planes), each effect
// produces a new Image, and the result is packed back into the capturer's
// layout:
//
//	fx := effector.New(effector.WithLayout(capture.FormatNV21))
//	fx.AddEffect(effector.NewBrightnessEffect(20))
//	fx.AddEffect(effector.NewGaussianBlurEffect(2.5))
//
//	proxy, err := capture.NewObserverProxy(helper, consumer, fx)
//
// Effects can be changed and the effector enabled or disabled from any
// goroutine while frames are being processed on the capture thread.
//
// Available effects:
//   - BrightnessEffect: shift luminance
//   - ContrastEffect: scale luminance around mid-gray
//   - GrayscaleEffect: neutralize chroma
//   - BlurEffect: box blur of the luminance plane
//   - GaussianBlurEffect: Gaussian blur of the whole image
//   - SharpenEffect: 3x3 sharpening of the luminance plane
//   - ColorTemperatureEffect: warm or cool chroma shift
//   - PixelateEffect: coarse blocks via a bilinear down/up scale
package effector
