package imageprocessing

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for payloads that cannot be decoded into an image.
var ErrUnsupportedImage = errors.New("unsupported image data")

// DefaultMaxPixels bounds the canvas of a decoded or rendered image, about 200MB as RGBA.
const DefaultMaxPixels = 50_000_000

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

type PngConverterOptions struct {
	// MaxWidth is the width SVGs are rendered at when they declare a wider size.
	MaxWidth int
	// MaxPixels rejects payloads whose canvas would exceed it; zero means DefaultMaxPixels.
	MaxPixels int
	// SvgFallbackWidth and SvgFallbackHeight are used for SVGs that declare neither
	// width/height nor a viewBox.
	SvgFallbackWidth  int
	SvgFallbackHeight int
}

// PngConverterCommand converts any supported raster format or SVG into PNG.
type PngConverterCommand struct {
	maxWidth          int
	maxPixels         int
	svgFallbackWidth  int
	svgFallbackHeight int
}

func NewPngConverterCommand(options PngConverterOptions) (*PngConverterCommand, error) {
	if options.MaxWidth <= 0 {
		return nil, fmt.Errorf("max width must be positive, got %d", options.MaxWidth)
	}
	if options.SvgFallbackWidth <= 0 || options.SvgFallbackHeight <= 0 {
		return nil, fmt.Errorf("svg fallback size must be positive, got %dx%d", options.SvgFallbackWidth, options.SvgFallbackHeight)
	}
	maxPixels := options.MaxPixels
	if maxPixels == 0 {
		maxPixels = DefaultMaxPixels
	}
	if maxPixels < 0 {
		return nil, fmt.Errorf("max pixels must not be negative, got %d", maxPixels)
	}
	return &PngConverterCommand{
		maxWidth:          options.MaxWidth,
		maxPixels:         maxPixels,
		svgFallbackWidth:  options.SvgFallbackWidth,
		svgFallbackHeight: options.SvgFallbackHeight,
	}, nil
}

func (c *PngConverterCommand) Name() string {
	return "PngConverterCommand"
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	isPNG := bytes.HasPrefix(imageData, pngSignature)
	if !isPNG && isSVGData(imageData) {
		return c.convertSVG(imageData)
	}

	// the header is enough to reject oversized canvases before pixels are allocated
	config, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := c.checkPixels(config.Width, config.Height); err != nil {
		return nil, err
	}
	if isPNG {
		return imageData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s image as PNG: %w", format, err)
	}
	return buf.Bytes(), nil
}

func (c *PngConverterCommand) checkPixels(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty canvas %dx%d", ErrUnsupportedImage, width, height)
	}
	if width > c.maxPixels/height {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, width, height, c.maxPixels)
	}
	return nil
}

// renderSize scales a declared SVG size down to maxWidth, keeping the aspect ratio.
func (c *PngConverterCommand) renderSize(width, height float64) (int, int, error) {
	if width > float64(c.maxWidth) {
		height = height * float64(c.maxWidth) / width
		width = float64(c.maxWidth)
	}
	// compared as floats so absurd declared sizes cannot overflow int
	if height > float64(c.maxPixels) || width*height > float64(c.maxPixels) {
		return 0, 0, fmt.Errorf("%w: rendered SVG of %.0fx%.0f exceeds %d pixels", ErrUnsupportedImage, width, height, c.maxPixels)
	}
	return max(int(math.Round(width)), 1), max(int(math.Round(height)), 1), nil
}

func (c *PngConverterCommand) convertSVG(svgData []byte) ([]byte, error) {
	declaredWidth, declaredHeight, ok := svgSize(svgData)
	if !ok {
		declaredWidth, declaredHeight = float64(c.svgFallbackWidth), float64(c.svgFallbackHeight)
	}
	width, height, err := c.renderSize(declaredWidth, declaredHeight)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse SVG: %v", ErrUnsupportedImage, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = declaredWidth, declaredHeight
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	// white background, SVGs are usually transparent
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isSVGData sniffs the first 4KB for an svg root element.
func isSVGData(data []byte) bool {
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	return bytes.Contains(bytes.ToLower(data[:n]), []byte("<svg"))
}

// svgSize reads the size of the root element: width/height first, viewBox second.
func svgSize(data []byte) (float64, float64, bool) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			return 0, 0, false
		}
		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "svg") {
			continue
		}

		var width, height float64
		var viewBox string
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "width":
				width = leadingNumber(attr.Value)
			case "height":
				height = leadingNumber(attr.Value)
			case "viewbox":
				viewBox = attr.Value
			}
		}
		if width >= 1 && height >= 1 {
			return width, height, true
		}

		fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) == 4 {
			w, werr := strconv.ParseFloat(fields[2], 64)
			h, herr := strconv.ParseFloat(fields[3], 64)
			if werr == nil && herr == nil && w >= 1 && h >= 1 && !math.IsInf(w, 0) && !math.IsInf(h, 0) {
				return w, h, true
			}
		}
		return 0, 0, false
	}
}

// leadingNumber parses the numeric prefix of values like "120px" or "64.5".
func leadingNumber(value string) float64 {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && (value[end] >= '0' && value[end] <= '9' || value[end] == '.') {
		end++
	}
	n, err := strconv.ParseFloat(value[:end], 64)
	if err != nil || math.IsInf(n, 0) {
		return 0
	}
	return n
}
