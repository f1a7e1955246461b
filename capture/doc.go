// Package capture intercepts the callbacks a video capturer delivers to its
// observer so that an effect hook can rewrite frames before they reach the
// original consumer.
//
// # Overview
//
// A capturer produces frames on a dedicated capture thread and reports them
// to an Observer. ObserverProxy sits between the two:
//
//	capturer → ObserverProxy → (EffectHook) → original Observer
//
// Byte-buffer frames are offered to the EffectHook. When the hook asks for
// processing, the replacement buffer is forwarded and the capture source's
// texture frame is returned afterwards. Texture frames are always forwarded
// untouched.
//
// # Construction
//
// NewObserverProxy runs EffectHook.Init on the capture thread and blocks until
// it has completed, so no frame callback can race with hook initialization:
//
//	proxy, err := capture.NewObserverProxy(helper, consumer, effector,
//	    capture.WithInitTimeout(2*time.Second))
//	if err != nil {
//	    return fmt.Errorf("bind capture observer: %w", err)
//	}
//	capturer.Initialize(proxy)
//
// Without WithInitTimeout the wait is unbounded: an unresponsive capture
// thread blocks construction forever.
//
// # Sessions
//
// Session tracks whether a Capturer is currently capturing so that repeated
// Start and Stop calls are harmless:
//
//	session := capture.NewSession(capturer)
//	session.Start(640, 480, 30)
//	defer session.Close()
//
// # Thread Safety
//
// Observer callbacks are expected to arrive sequentially on the capture
// thread. ObserverProxy takes no locks on the frame path. Stats may be read
// from any goroutine.
package capture
