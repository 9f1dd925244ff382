package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// decodeCompressed decodes any registered still format (JPEG, PNG, GIF, BMP, WebP).
func decodeCompressed(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("camera: empty frame")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// yuyvToImage converts a packed YUYV 4:2:2 frame into an image.YCbCr without
// colour conversion; the decoder only needs luma and image.YCbCr keeps it intact.
func yuyvToImage(buf []byte, w, h int) (*image.YCbCr, error) {
	if w <= 0 || h <= 0 || w%2 != 0 {
		return nil, fmt.Errorf("camera: invalid yuyv size %dx%d", w, h)
	}
	if len(buf) < w*h*2 {
		return nil, fmt.Errorf("camera: short yuyv frame: %d bytes for %dx%d", len(buf), w, h)
	}
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := buf[y*w*2 : (y+1)*w*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < w; x += 2 {
			i := x * 2
			img.Y[yOff+x] = row[i]
			img.Cb[cOff+x/2] = row[i+1]
			img.Y[yOff+x+1] = row[i+2]
			img.Cr[cOff+x/2] = row[i+3]
		}
	}
	return img, nil
}
