package compositor

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Output resolution. Every frame the pipeline touches is exactly this
// size; the decoder scales the source up or down before we ever see it.
const (
	FrameWidth  = 1920
	FrameHeight = 1080
)

// Frame is one 1920x1080 sample of the source video as packed RGB24,
// the pixel format the decode and encode pipes speak. It is mutated in
// place by Blend and then handed to the encoder.
type Frame struct {
	W, H int
	Pix  []byte // len = W*H*3, row-major RGB
}

// NewFrame allocates a black frame at the output resolution.
func NewFrame() *Frame {
	return &Frame{
		W:   FrameWidth,
		H:   FrameHeight,
		Pix: make([]byte, FrameWidth*FrameHeight*3),
	}
}

// Sprite is the background-removed product image. The source pixels are
// loaded once per job and are read-only; ResizedTo derives a scaled copy
// per frame (cached, since the scale only changes during the zoom window).
type Sprite struct {
	src *image.NRGBA

	lastWidth int
	cached    *image.NRGBA
}

// LoadSprite reads and decodes the product image. The image must carry
// an alpha channel — an opaque format (JPEG, grayscale) cannot describe
// a cut-out and fails with ErrSpriteInvalid.
func LoadSprite(path string) (*Sprite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpriteInvalid, err)
	}
	return LoadSpriteBytes(data)
}

// LoadSpriteBytes decodes a sprite from an in-memory image.
func LoadSpriteBytes(data []byte) (*Sprite, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSpriteInvalid, err)
	}

	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return nil, fmt.Errorf("%w: image has no alpha channel", ErrSpriteInvalid)
	}

	return &Sprite{src: imaging.Clone(img)}, nil
}

// SourceBounds returns the unscaled sprite dimensions.
func (s *Sprite) SourceBounds() (w, h int) {
	b := s.src.Bounds()
	return b.Dx(), b.Dy()
}

// ResizedTo returns the sprite scaled to the given width, height derived
// from the source aspect ratio. Lanczos resampling keeps product edges
// clean at small scales. The result is cached until the width changes,
// which makes the post-zoom phase (constant scale) essentially free.
func (s *Sprite) ResizedTo(width int) *image.NRGBA {
	if width < 1 {
		width = 1
	}
	if s.cached != nil && s.lastWidth == width {
		return s.cached
	}

	s.cached = imaging.Resize(s.src, width, 0, imaging.Lanczos)
	s.lastWidth = width
	return s.cached
}

// Blend alpha-composites the sprite onto the frame at (x, y), per
// channel, using the sprite's alpha as the blend weight. Out-of-range
// rectangles are clipped rather than rejected, so a caller that failed
// to clamp cannot corrupt memory or panic here.
func Blend(f *Frame, sprite *image.NRGBA, x, y int) {
	sb := sprite.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	// Clip the destination rectangle to the frame.
	x0, y0 := x, y
	sx0, sy0 := 0, 0
	if x0 < 0 {
		sx0 = -x0
		x0 = 0
	}
	if y0 < 0 {
		sy0 = -y0
		y0 = 0
	}
	x1 := x + sw
	y1 := y + sh
	if x1 > f.W {
		x1 = f.W
	}
	if y1 > f.H {
		y1 = f.H
	}
	if x0 >= x1 || y0 >= y1 {
		return
	}

	for fy := y0; fy < y1; fy++ {
		sy := sy0 + (fy - y0)
		srcRow := sprite.Pix[sprite.PixOffset(sb.Min.X, sb.Min.Y+sy):]
		dstRow := f.Pix[(fy*f.W+x0)*3:]

		for fx := 0; fx < x1-x0; fx++ {
			sx := (sx0 + fx) * 4
			a := uint32(srcRow[sx+3])
			if a == 0 {
				continue
			}

			di := fx * 3
			if a == 255 {
				dstRow[di] = srcRow[sx]
				dstRow[di+1] = srcRow[sx+1]
				dstRow[di+2] = srcRow[sx+2]
				continue
			}

			inv := 255 - a
			dstRow[di] = uint8((uint32(dstRow[di])*inv + uint32(srcRow[sx])*a) / 255)
			dstRow[di+1] = uint8((uint32(dstRow[di+1])*inv + uint32(srcRow[sx+1])*a) / 255)
			dstRow[di+2] = uint8((uint32(dstRow[di+2])*inv + uint32(srcRow[sx+2])*a) / 255)
		}
	}
}
