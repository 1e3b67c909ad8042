package imageprocessing

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func newTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func decodePNGSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	return cfg.Width, cfg.Height
}

type mockCommand struct {
	name        string
	executeFunc func([]byte) ([]byte, error)
}

func (m *mockCommand) Name() string { return m.name }

func (m *mockCommand) Execute(data []byte) ([]byte, error) { return m.executeFunc(data) }

func TestCommandInvoker_Execute(t *testing.T) {
	appendByte := func(b byte) *mockCommand {
		return &mockCommand{name: "append", executeFunc: func(d []byte) ([]byte, error) {
			return append(append([]byte{}, d...), b), nil
		}}
	}

	got, err := NewCommandInvoker(appendByte('a'), appendByte('b')).Execute([]byte("x"))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if string(got) != "xab" {
		t.Errorf("expected %q, got %q", "xab", string(got))
	}

	got, err = NewCommandInvoker().Execute([]byte("x"))
	if err != nil || string(got) != "x" {
		t.Errorf("expected empty pipeline to return input, got %q, %v", string(got), err)
	}
}

func TestCommandInvoker_Execute_Error(t *testing.T) {
	boom := errors.New("boom")
	failing := &mockCommand{name: "failing", executeFunc: func([]byte) ([]byte, error) { return nil, boom }}

	_, err := NewCommandInvoker(failing).Execute([]byte("x"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
}

func TestDecodeImageData(t *testing.T) {
	raw := []byte("hello image")
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name        string
		input       string
		contentType string
		wantErr     bool
	}{
		{name: "data URL", input: "data:image/png;base64," + encoded, contentType: "image/png"},
		{name: "bare base64", input: encoded},
		{name: "empty", input: "   ", wantErr: true},
		{name: "garbage", input: "not base64 at all!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, contentType, err := DecodeImageData(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedImage) {
					t.Fatalf("expected ErrUnsupportedImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeImageData error: %v", err)
			}
			if !bytes.Equal(data, raw) {
				t.Errorf("expected %q, got %q", raw, data)
			}
			if contentType != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, contentType)
			}
		})
	}
}

func TestPngConverterCommand_Execute(t *testing.T) {
	command, err := NewPngConverterCommand(PngConverterOptions{MaxWidth: 100, SvgFallbackWidth: 40, SvgFallbackHeight: 30})
	if err != nil {
		t.Fatalf("NewPngConverterCommand error: %v", err)
	}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, newTestImage(16, 8), nil); err != nil {
		t.Fatalf("jpeg.Encode error: %v", err)
	}
	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, newTestImage(12, 6)); err != nil {
		t.Fatalf("bmp.Encode error: %v", err)
	}

	tests := []struct {
		name           string
		input          []byte
		expectedWidth  int
		expectedHeight int
	}{
		{name: "jpeg", input: jpegBuf.Bytes(), expectedWidth: 16, expectedHeight: 8},
		{name: "bmp", input: bmpBuf.Bytes(), expectedWidth: 12, expectedHeight: 6},
		{
			name:           "svg with explicit size",
			input:          []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="64px" height="32"><rect width="10" height="10"/></svg>`),
			expectedWidth:  64,
			expectedHeight: 32,
		},
		{
			name:           "svg with viewBox only",
			input:          []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10"><circle cx="5" cy="5" r="4"/></svg>`),
			expectedWidth:  20,
			expectedHeight: 10,
		},
		{
			name:           "wide svg is rendered at max width",
			input:          []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="60000" height="30000"><rect width="10" height="10"/></svg>`),
			expectedWidth:  100,
			expectedHeight: 50,
		},
		{
			name:           "svg without size uses fallback",
			input:          []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></svg>`),
			expectedWidth:  40,
			expectedHeight: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := command.Execute(tt.input)
			if err != nil {
				t.Fatalf("Execute error: %v", err)
			}
			w, h := decodePNGSize(t, out)
			if w != tt.expectedWidth || h != tt.expectedHeight {
				t.Errorf("expected %dx%d, got %dx%d", tt.expectedWidth, tt.expectedHeight, w, h)
			}
		})
	}
}

func TestPngConverterCommand_PassesThroughPNG(t *testing.T) {
	command, err := NewPngConverterCommand(PngConverterOptions{MaxWidth: 100, SvgFallbackWidth: 1, SvgFallbackHeight: 1})
	if err != nil {
		t.Fatalf("NewPngConverterCommand error: %v", err)
	}
	input := encodePNG(t, newTestImage(4, 4))

	out, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("expected PNG input to be returned unchanged")
	}
}

func TestPngConverterCommand_InvalidInput(t *testing.T) {
	command, err := NewPngConverterCommand(PngConverterOptions{MaxWidth: 100, SvgFallbackWidth: 1, SvgFallbackHeight: 1})
	if err != nil {
		t.Fatalf("NewPngConverterCommand error: %v", err)
	}
	if _, err := command.Execute([]byte("definitely not an image")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}

	invalid := []PngConverterOptions{
		{MaxWidth: 100, SvgFallbackWidth: 0, SvgFallbackHeight: 10},
		{MaxWidth: 0, SvgFallbackWidth: 10, SvgFallbackHeight: 10},
		{MaxWidth: 100, MaxPixels: -1, SvgFallbackWidth: 10, SvgFallbackHeight: 10},
	}
	for _, options := range invalid {
		if _, err := NewPngConverterCommand(options); err == nil {
			t.Errorf("expected error for options %+v", options)
		}
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring the given size without any
// pixel data behind it.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], width)
	binary.BigEndian.PutUint32(ihdr[8:], height)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 2 // truecolor

	var buf bytes.Buffer
	buf.Write(pngSignature)
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestPngConverterCommand_RejectsOversizedCanvas(t *testing.T) {
	command, err := NewPngConverterCommand(PngConverterOptions{MaxWidth: 100, SvgFallbackWidth: 1, SvgFallbackHeight: 1})
	if err != nil {
		t.Fatalf("NewPngConverterCommand error: %v", err)
	}
	small, err := NewPngConverterCommand(PngConverterOptions{MaxWidth: 100, MaxPixels: 1000, SvgFallbackWidth: 1, SvgFallbackHeight: 1})
	if err != nil {
		t.Fatalf("NewPngConverterCommand error: %v", err)
	}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, newTestImage(50, 50), nil); err != nil {
		t.Fatalf("jpeg.Encode error: %v", err)
	}

	tests := []struct {
		name    string
		command *PngConverterCommand
		input   []byte
	}{
		{name: "png header declaring 60000x60000", command: command, input: pngHeader(60000, 60000)},
		{name: "svg taller than the pixel budget", command: command, input: []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="1000000000"></svg>`)},
		{name: "svg viewBox taller than the pixel budget", command: command, input: []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1e12"></svg>`)},
		{name: "jpeg over a small budget", command: small, input: jpegBuf.Bytes()},
		{name: "png over a small budget", command: small, input: encodePNG(t, newTestImage(50, 50))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.command.Execute(tt.input); !errors.Is(err, ErrUnsupportedImage) {
				t.Fatalf("expected ErrUnsupportedImage, got %v", err)
			}
		})
	}
}

func TestFitWidthCommand_Execute(t *testing.T) {
	tests := []struct {
		name           string
		width          int
		source         image.Image
		expectedWidth  int
		expectedHeight int
	}{
		{name: "downscale keeps aspect ratio", width: 50, source: newTestImage(200, 100), expectedWidth: 50, expectedHeight: 25},
		{name: "narrow image unchanged", width: 500, source: newTestImage(200, 100), expectedWidth: 200, expectedHeight: 100},
		{name: "height never collapses", width: 10, source: newTestImage(200, 2), expectedWidth: 10, expectedHeight: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewFitWidthCommand(tt.width)
			if err != nil {
				t.Fatalf("NewFitWidthCommand error: %v", err)
			}
			out, err := command.Execute(encodePNG(t, tt.source))
			if err != nil {
				t.Fatalf("Execute error: %v", err)
			}
			w, h := decodePNGSize(t, out)
			if w != tt.expectedWidth || h != tt.expectedHeight {
				t.Errorf("expected %dx%d, got %dx%d", tt.expectedWidth, tt.expectedHeight, w, h)
			}
		})
	}

	if _, err := NewFitWidthCommand(-1); err == nil {
		t.Errorf("expected error for negative width")
	}
}

func TestRenderPreview(t *testing.T) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, newTestImage(300, 150)))
	options := PreviewOptions{MaxWidth: 200, SvgFallbackWidth: 10, SvgFallbackHeight: 10}

	out, err := RenderPreview(dataURL, options)
	if err != nil {
		t.Fatalf("RenderPreview error: %v", err)
	}
	if w, h := decodePNGSize(t, out); w != 200 || h != 100 {
		t.Errorf("expected 200x100 capped by MaxWidth, got %dx%d", w, h)
	}

	options.Width = 60
	out, err = RenderPreview(dataURL, options)
	if err != nil {
		t.Fatalf("RenderPreview error: %v", err)
	}
	if w, h := decodePNGSize(t, out); w != 60 || h != 30 {
		t.Errorf("expected 60x30 for requested width, got %dx%d", w, h)
	}

	if _, err := RenderPreview("data:text/plain;base64,"+base64.StdEncoding.EncodeToString([]byte("hi")), options); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage for non-image payload, got %v", err)
	}

	huge := `<svg xmlns="http://www.w3.org/2000/svg" width="12000" height="12000"><rect width="12000" height="12000" fill="red"/></svg>`
	out, err = RenderPreview("data:image/svg+xml;base64,"+base64.StdEncoding.EncodeToString([]byte(huge)), PreviewOptions{
		Width:             100,
		MaxWidth:          2048,
		SvgFallbackWidth:  10,
		SvgFallbackHeight: 10,
	})
	if err != nil {
		t.Fatalf("RenderPreview error for large SVG: %v", err)
	}
	if w, h := decodePNGSize(t, out); w != 100 || h != 100 {
		t.Errorf("expected large SVG rendered directly at 100x100, got %dx%d", w, h)
	}
}
