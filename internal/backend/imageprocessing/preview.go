package imageprocessing

import "fmt"

type PreviewOptions struct {
	// Width requested by the caller; zero means MaxWidth.
	Width             int
	MaxWidth          int
	MaxPixels         int
	SvgFallbackWidth  int
	SvgFallbackHeight int
}

// RenderPreview decodes a stored image payload and renders it as a PNG no wider than
// min(Width, MaxWidth). Payloads whose canvas exceeds MaxPixels are rejected with
// ErrUnsupportedImage before any pixels are allocated.
func RenderPreview(imageData string, options PreviewOptions) ([]byte, error) {
	width := options.MaxWidth
	if options.Width > 0 && options.Width < width {
		width = options.Width
	}

	converter, err := NewPngConverterCommand(PngConverterOptions{
		MaxWidth:          width,
		MaxPixels:         options.MaxPixels,
		SvgFallbackWidth:  options.SvgFallbackWidth,
		SvgFallbackHeight: options.SvgFallbackHeight,
	})
	if err != nil {
		return nil, err
	}
	fit, err := NewFitWidthCommand(width)
	if err != nil {
		return nil, err
	}

	raw, _, err := DecodeImageData(imageData)
	if err != nil {
		return nil, err
	}
	preview, err := NewCommandInvoker(converter, fit).Execute(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	return preview, nil
}
