package services

import (
	"bytes"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
)

// Still-composite output dimensions match the video pipeline frame.
const (
	compositeWidth  = 1920
	compositeHeight = 1080

	// Overlay may cover at most this fraction of either axis.
	overlayMaxFraction = 0.8
)

// CompositeService pastes a product cutout over a generated background
// to produce a single preview still. Video compositing is a separate
// pipeline; this only handles static images.
type CompositeService struct{}

func NewCompositeService() *CompositeService {
	return &CompositeService{}
}

// Composite decodes both images, fits the overlay into the background,
// and returns the flattened result as PNG bytes. When resizeOverlay is
// false the overlay keeps its native size (still clipped by the paste).
func (s *CompositeService) Composite(backgroundData, overlayData []byte, resizeOverlay bool) ([]byte, error) {
	background, err := imaging.Decode(bytes.NewReader(backgroundData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode background: %w", err)
	}
	overlay, err := imaging.Decode(bytes.NewReader(overlayData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode overlay: %w", err)
	}

	canvas := imaging.Fill(background, compositeWidth, compositeHeight, imaging.Center, imaging.Lanczos)

	if resizeOverlay {
		overlay = fitOverlay(overlay)
	}

	ob := overlay.Bounds()
	x := (compositeWidth - ob.Dx()) / 2
	y := (compositeHeight - ob.Dy()) / 2
	result := imaging.Overlay(canvas, overlay, image.Pt(x, y), 1.0)

	var out bytes.Buffer
	if err := imaging.Encode(&out, result, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}

	log.Printf("[Composite] %dx%d background + %dx%d overlay -> %d bytes",
		background.Bounds().Dx(), background.Bounds().Dy(), ob.Dx(), ob.Dy(), out.Len())

	return out.Bytes(), nil
}

// fitOverlay shrinks the overlay so neither side exceeds 80% of the
// canvas. Smaller overlays are never upscaled.
func fitOverlay(overlay image.Image) image.Image {
	maxW := int(float64(compositeWidth) * overlayMaxFraction)
	maxH := int(float64(compositeHeight) * overlayMaxFraction)

	b := overlay.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return overlay
	}
	return imaging.Fit(overlay, maxW, maxH, imaging.Lanczos)
}
