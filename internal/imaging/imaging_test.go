package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solidJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestCenterCropResizeEncodeProducesExactDimensions(t *testing.T) {
	src := solidJPEG(t, 1200, 1200)

	out, err := CenterCropResizeEncode(src, PinAspectRatio, 600, 900, 85)
	if err != nil {
		t.Fatalf("crop/resize: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 600 || bounds.Dy() != 900 {
		t.Fatalf("got %dx%d, want 600x900", bounds.Dx(), bounds.Dy())
	}
}

func TestCenterCropResizeEncodePNGProducesExactDimensions(t *testing.T) {
	src := solidJPEG(t, 1000, 1000)

	out, err := CenterCropResizeEncodePNG(src, AspectRatio{W: 2, H: 3}, 1000, 1500)
	if err != nil {
		t.Fatalf("crop/resize png: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 1000 || bounds.Dy() != 1500 {
		t.Fatalf("got %dx%d, want 1000x1500", bounds.Dx(), bounds.Dy())
	}
}

func TestValidateContentType(t *testing.T) {
	if err := ValidateContentType("image/png"); err != nil {
		t.Fatalf("expected png to be valid: %v", err)
	}
	if err := ValidateContentType("application/pdf"); err == nil {
		t.Fatal("expected unsupported content type to error")
	}
}
