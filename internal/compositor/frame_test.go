package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

func solidSprite(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBlendTransparentSpriteLeavesFrameUntouched(t *testing.T) {
	f := NewFrame()
	for i := range f.Pix {
		f.Pix[i] = 128
	}
	before := make([]byte, len(f.Pix))
	copy(before, f.Pix)

	sprite := solidSprite(50, 50, color.NRGBA{R: 255, G: 0, B: 0, A: 0})
	Blend(f, sprite, 100, 100)

	if !bytes.Equal(f.Pix, before) {
		t.Error("alpha=0 sprite modified the frame")
	}
}

func TestBlendOpaqueSpriteOverwritesRegion(t *testing.T) {
	f := NewFrame()
	sprite := solidSprite(10, 10, color.NRGBA{R: 200, G: 50, B: 25, A: 255})
	Blend(f, sprite, 30, 40)

	// Inside the sprite rectangle: fully overwritten.
	off := (45*f.W + 35) * 3
	if f.Pix[off] != 200 || f.Pix[off+1] != 50 || f.Pix[off+2] != 25 {
		t.Errorf("pixel inside sprite = (%d,%d,%d), want (200,50,25)",
			f.Pix[off], f.Pix[off+1], f.Pix[off+2])
	}

	// Just outside: untouched.
	off = (45*f.W + 29) * 3
	if f.Pix[off] != 0 {
		t.Errorf("pixel outside sprite modified: %d", f.Pix[off])
	}
}

func TestBlendHalfAlpha(t *testing.T) {
	f := NewFrame()
	for i := range f.Pix {
		f.Pix[i] = 100
	}

	sprite := solidSprite(4, 4, color.NRGBA{R: 200, G: 200, B: 200, A: 128})
	Blend(f, sprite, 0, 0)

	// 100*(127/255) + 200*(128/255) ≈ 150
	got := f.Pix[0]
	if got < 148 || got > 152 {
		t.Errorf("half-alpha blend = %d, want ~150", got)
	}
}

func TestBlendClipsOutOfRangeRect(t *testing.T) {
	f := NewFrame()
	sprite := solidSprite(100, 100, color.NRGBA{R: 255, A: 255})

	// None of these may panic or write out of bounds.
	Blend(f, sprite, -50, -50)
	Blend(f, sprite, f.W-10, f.H-10)
	Blend(f, sprite, f.W+5, f.H+5)
	Blend(f, sprite, -200, 0)

	// Top-left clip left the visible quarter red.
	if f.Pix[0] != 255 {
		t.Error("clipped top-left blend did not write visible region")
	}
}

func TestLoadSpriteRejectsMissingAlpha(t *testing.T) {
	// JPEG decodes to YCbCr which has no alpha channel.
	var buf bytes.Buffer
	src := imaging.New(10, 10, color.NRGBA{R: 255, A: 255})
	if err := imaging.Encode(&buf, src, imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	_, err := LoadSpriteBytes(buf.Bytes())
	if err == nil {
		t.Fatal("expected error for alpha-less image")
	}
}

func TestLoadSpriteAcceptsPNGWithAlpha(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidSprite(8, 6, color.NRGBA{G: 255, A: 200})); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	s, err := LoadSpriteBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("load sprite: %v", err)
	}

	w, h := s.SourceBounds()
	if w != 8 || h != 6 {
		t.Errorf("bounds = %dx%d, want 8x6", w, h)
	}
}

func TestLoadSpriteRejectsGarbage(t *testing.T) {
	if _, err := LoadSpriteBytes([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestResizedToPreservesAspectAndCaches(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidSprite(200, 100, color.NRGBA{B: 255, A: 255})); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	s, err := LoadSpriteBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("load sprite: %v", err)
	}

	r := s.ResizedTo(50)
	if r.Bounds().Dx() != 50 || r.Bounds().Dy() != 25 {
		t.Errorf("resized = %dx%d, want 50x25", r.Bounds().Dx(), r.Bounds().Dy())
	}

	// Same width returns the cached copy.
	if s.ResizedTo(50) != r {
		t.Error("expected cached resize for repeated width")
	}

	// Width floor.
	if s.ResizedTo(0).Bounds().Dx() != 1 {
		t.Error("expected minimum width of 1")
	}
}
