package compositor

import "math"

// Animation defaults. These are part of the observable contract:
// the product zooms in from 5% to its target scale over the first
// 3 seconds, then floats on a ±30px sine wave.
const (
	DefaultZoomWindow = 3.0  // seconds
	DefaultMinScale   = 0.05 // zoom starting point, fraction of frame width
	DefaultAmplitude  = 30.0 // pixels
	DefaultFloatRate  = 0.8  // rad/s
)

// Curve evaluates the product animation at a given elapsed time.
// It is pure; the same t always yields the same result.
type Curve struct {
	Animate     bool
	ZoomWindow  float64 // seconds; <= 0 behaves like Animate=false
	MinScale    float64
	TargetScale float64
	Amplitude   float64 // pixels
	Rate        float64 // rad/s
}

// NewCurve builds a curve with the default zoom/float parameters
// around the caller's target scale.
func NewCurve(targetScale float64, animate bool) Curve {
	return Curve{
		Animate:     animate,
		ZoomWindow:  DefaultZoomWindow,
		MinScale:    DefaultMinScale,
		TargetScale: targetScale,
		Amplitude:   DefaultAmplitude,
		Rate:        DefaultFloatRate,
	}
}

// Eval returns the sprite scale and vertical float offset (pixels) at
// time t seconds.
//
// Inside the zoom window the scale follows a cubic ease-out from
// MinScale up to TargetScale. After the window the scale holds at
// TargetScale and the offset oscillates as Amplitude*sin(Rate*(t-window)).
// With animation off (or a degenerate window) both branches short-circuit
// to the static scale, so there is no division by a zero window.
func (c Curve) Eval(t float64) (scale, dy float64) {
	if !c.Animate || c.ZoomWindow <= 0 {
		return c.TargetScale, 0
	}

	if t < c.ZoomWindow {
		progress := t / c.ZoomWindow
		eased := 1 - math.Pow(1-progress, 3)
		return c.MinScale + eased*(c.TargetScale-c.MinScale), 0
	}

	return c.TargetScale, c.Amplitude * math.Sin(c.Rate*(t-c.ZoomWindow))
}
