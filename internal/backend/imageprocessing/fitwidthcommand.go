package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// FitWidthCommand downscales a PNG to at most the given width, keeping the aspect ratio.
// Images that are already narrow enough are returned unchanged.
type FitWidthCommand struct {
	width int
}

func NewFitWidthCommand(width int) (*FitWidthCommand, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}
	return &FitWidthCommand{width: width}, nil
}

func (c *FitWidthCommand) Name() string {
	return "FitWidthCommand"
}

func (c *FitWidthCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= c.width {
		return imageData, nil
	}

	targetHeight := bounds.Dy() * c.width / bounds.Dx()
	if targetHeight < 1 {
		targetHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, c.width, targetHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}
	return buf.Bytes(), nil
}
