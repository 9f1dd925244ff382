// Package frame holds the fixed-size still image a scan session decodes from.
package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// MaxWidth bounds the buffer width to keep per-frame decode cost predictable.
const MaxWidth = 500

// ErrInvalidDimensions is returned when a source reports a zero or negative size.
var ErrInvalidDimensions = errors.New("frame: invalid source dimensions")

// Size computes buffer dimensions for a source of srcW x srcH: the width is
// min(srcW, maxW) and the height follows the source aspect ratio, rounded to
// the nearest pixel. maxW <= 0 selects MaxWidth.
func Size(srcW, srcH, maxW int) (image.Point, error) {
	if srcW <= 0 || srcH <= 0 {
		return image.Point{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, srcW, srcH)
	}
	if maxW <= 0 {
		maxW = MaxWidth
	}
	w := min(srcW, maxW)
	aspect := float64(srcW) / float64(srcH)
	h := int(math.Round(float64(w) / aspect))
	if h < 1 {
		h = 1
	}
	return image.Pt(w, h), nil
}

// Buffer is an off-screen RGBA surface whose dimensions are fixed at creation.
// Draw and Snapshot may be called from different goroutines.
type Buffer struct {
	mu   sync.Mutex
	img  *image.RGBA
	size image.Point
}

// NewBuffer sizes a buffer for a source of srcW x srcH. It fails closed on
// invalid dimensions: no buffer is allocated.
func NewBuffer(srcW, srcH, maxW int) (*Buffer, error) {
	size, err := Size(srcW, srcH, maxW)
	if err != nil {
		return nil, err
	}
	return &Buffer{img: acquire(image.Rect(0, 0, size.X, size.Y)), size: size}, nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.size.X }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.size.Y }

// Bounds returns the fixed target rectangle (0,0,width,height).
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.size.X, b.size.Y) }

// Draw scales the whole of src into the target rectangle, replacing every pixel.
func (b *Buffer) Draw(src image.Image) error {
	if src == nil {
		return errors.New("frame: nil source image")
	}
	sb := src.Bounds()
	if sb.Empty() {
		return fmt.Errorf("%w: empty source frame", ErrInvalidDimensions)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return errors.New("frame: buffer released")
	}
	xdraw.ApproxBiLinear.Scale(b.img, b.img.Rect, src, sb, xdraw.Src, nil)
	return nil
}

// Image exposes the backing surface. Only the scan loop goroutine that calls
// Draw may read it without holding a Snapshot.
func (b *Buffer) Image() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img
}

// Snapshot returns a pooled copy of the current contents, or nil after Release.
// Hand it back with Recycle when done.
func (b *Buffer) Snapshot() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return nil
	}
	out := acquire(b.img.Rect)
	copy(out.Pix, b.img.Pix)
	return out
}

// Release returns the backing surface to the pool. The buffer is unusable afterwards.
func (b *Buffer) Release() {
	b.mu.Lock()
	img := b.img
	b.img = nil
	b.mu.Unlock()
	Recycle(img)
}
