// Package images prepares frames for on-screen display.
package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit downsamples src so it fits within maxW x maxH, preserving the
// aspect ratio. Images that already fit are returned unchanged; previews
// are never enlarged.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, max(maxW, 1), max(maxH, 1), imaging.Box)
}

// Placeholder returns a neutral grey image used when no frame is available.
func Placeholder(w, h int) image.Image {
	return imaging.New(max(w, 1), max(h, 1), color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff})
}
