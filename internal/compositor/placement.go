package compositor

// Anchor names a fixed placement of the product on the frame.
type Anchor string

const (
	AnchorCenter Anchor = "center"
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
)

// ParseAnchor maps a position keyword to an Anchor. Unknown values
// fall back to center, matching the placement defaults elsewhere.
func ParseAnchor(s string) Anchor {
	switch Anchor(s) {
	case AnchorTop, AnchorBottom, AnchorLeft, AnchorRight:
		return Anchor(s)
	default:
		return AnchorCenter
	}
}

// Target returns the pre-smoothing top-left position for a sprite of
// spriteW x spriteH on a frameW x frameH frame, with dy the vertical
// float offset in pixels.
//
// Center places the sprite on the 52% vertical line (slightly below
// true center so the product sits naturally over most backgrounds);
// top and bottom sit at 20% and 80%, left and right at 20% and 80%
// of the width.
func (a Anchor) Target(frameW, frameH, spriteW, spriteH int, dy float64) (x, y int) {
	centerX := frameW/2 - spriteW/2
	centerY := int(float64(frameH)*0.52) - spriteH/2 + int(dy)

	switch a {
	case AnchorTop:
		return centerX, int(float64(frameH)*0.2) + int(dy)
	case AnchorBottom:
		return centerX, int(float64(frameH)*0.8) - spriteH + int(dy)
	case AnchorLeft:
		return int(float64(frameW) * 0.2), centerY
	case AnchorRight:
		return int(float64(frameW)*0.8) - spriteW, centerY
	default:
		return centerX, centerY
	}
}

// DefaultSmoothing is the exponential damping factor applied to the
// sprite position each frame to kill frame-to-frame jitter.
const DefaultSmoothing = 0.08

// Smoother is the only mutable state carried across frames besides the
// frame index: an exponentially damped estimate of the sprite position.
// It must be fed every frame in order; the damped value depends on the
// previous frame's rendered position, not the previous target.
type Smoother struct {
	x, y        float64
	initialized bool
	Factor      float64
}

// Update damps the smoothed position toward the target and returns the
// integer position to render at. The first call snaps to the target.
func (s *Smoother) Update(targetX, targetY int) (x, y int) {
	if !s.initialized {
		s.x, s.y = float64(targetX), float64(targetY)
		s.initialized = true
	}

	f := s.Factor
	if f <= 0 {
		f = DefaultSmoothing
	}

	s.x += (float64(targetX) - s.x) * f
	s.y += (float64(targetY) - s.y) * f

	return int(s.x), int(s.y)
}

// clampToFrame keeps the sprite rectangle fully inside the frame.
// Applied after smoothing on every frame, so the damped position can
// never drift out of bounds.
func clampToFrame(x, y, spriteW, spriteH, frameW, frameH int) (int, int) {
	if x > frameW-spriteW {
		x = frameW - spriteW
	}
	if x < 0 {
		x = 0
	}
	if y > frameH-spriteH {
		y = frameH - spriteH
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
