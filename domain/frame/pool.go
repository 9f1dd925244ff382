package frame

import (
	"image"
	"sync"
)

// Reusable RGBA backing store for frame buffers and preview snapshots. A scan
// session allocates one buffer when the source reports its size and a preview
// snapshot on every tick; pooling keeps those large Pix slices from piling up
// between sessions and while the view is slow to consume snapshots.
//
// acquire(rect) returns an *image.RGBA whose Pix length is exactly rect area * 4.
// Callers hand frames back with Recycle once nothing references them. Frames
// that are never recycled are simply collected.

var pool sync.Pool // stores *image.RGBA

// acquire returns a reusable RGBA image sized to rect. Pixel contents are
// undefined; callers overwrite the full rectangle.
func acquire(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := pool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		img = &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	} else {
		img.Stride = w * 4
		img.Rect = rect
		img.Pix = img.Pix[:needed]
	}
	return img
}

// Recycle returns img to the pool for potential reuse. The image must no
// longer be accessed by the caller after invoking Recycle.
func Recycle(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	pool.Put(img)
}
