// Package imaging prepares product photography for the ad platform: pin
// images and winner image creatives are both center-cropped to the same
// 2:3 portrait ratio. CPU-bound transforms run
// synchronously inside the already-async fetch task rather than spinning
// up a separate worker pool for image math.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/jpeg"

	"image/png"

	_ "image/gif"

	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"
)

// AspectRatio is a target width:height ratio for a center crop.
type AspectRatio struct {
	W, H int
}

var (
	// PinAspectRatio is the 2:3 portrait pins are cropped to.
	PinAspectRatio = AspectRatio{W: 2, H: 3}
	// SquareAspectRatio is a 1:1 center-crop frame. Winner creatives are
	// cropped to PinAspectRatio, not to this one.
	SquareAspectRatio = AspectRatio{W: 1, H: 1}
)

// CenterCropResizeEncode decodes src, center-crops it to ratio, resizes the
// crop to exactly outW x outH, and re-encodes as JPEG at the given quality.
func CenterCropResizeEncode(src []byte, ratio AspectRatio, outW, outH, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "imaging: decode source image")
	}

	cropped := centerCrop(img, ratio)
	resized := resize(cropped, outW, outH)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, eris.Wrap(err, "imaging: encode jpeg")
	}
	return buf.Bytes(), nil
}

func centerCrop(img image.Image, ratio AspectRatio) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	targetRatio := float64(ratio.W) / float64(ratio.H)
	srcRatio := float64(srcW) / float64(srcH)

	var cropW, cropH int
	if srcRatio > targetRatio {
		cropH = srcH
		cropW = int(float64(cropH) * targetRatio)
	} else {
		cropW = srcW
		cropH = int(float64(cropW) / targetRatio)
	}

	offsetX := bounds.Min.X + (srcW-cropW)/2
	offsetY := bounds.Min.Y + (srcH-cropH)/2
	cropRect := image.Rect(offsetX, offsetY, offsetX+cropW, offsetY+cropH)

	dst := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	stddraw.Draw(dst, dst.Bounds(), img, cropRect.Min, stddraw.Src)
	return dst
}

func resize(img image.Image, outW, outH int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// CenterCropResizeEncodePNG decodes src, center-crops it to ratio, resizes
// the crop to exactly outW x outH, and re-encodes as PNG. Used for winner
// creative images (§4.F step 3), which the ad platform accepts as PNG
// uploads rather than the JPEG pins expect.
func CenterCropResizeEncodePNG(src []byte, ratio AspectRatio, outW, outH int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "imaging: decode source image")
	}

	cropped := centerCrop(img, ratio)
	resized := resize(cropped, outW, outH)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, eris.Wrap(err, "imaging: encode png")
	}
	return buf.Bytes(), nil
}

// ValidateContentType checks that contentType is an image format the
// pipeline is willing to upload, returning a descriptive error otherwise.
func ValidateContentType(contentType string) error {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
		return nil
	default:
		return fmt.Errorf("imaging: unsupported content type %q", contentType)
	}
}
