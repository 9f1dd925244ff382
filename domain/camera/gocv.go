//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// GoCVDriver opens cameras through OpenCV. It is built only with the gocv
// tag because it needs the native OpenCV libraries.
type GoCVDriver struct {
	Logger *slog.Logger
	// Indexes lists the OpenCV device indexes to offer; defaults to 0.
	Indexes []int
}

// GoCVAvailable reports whether the OpenCV driver was compiled in.
const GoCVAvailable = true

func (d *GoCVDriver) Name() string { return "gocv" }

func (d *GoCVDriver) Devices(ctx context.Context) ([]Device, error) {
	idx := d.Indexes
	if len(idx) == 0 {
		idx = []int{0}
	}
	devs := make([]Device, 0, len(idx))
	for _, i := range idx {
		devs = append(devs, Device{ID: "gocv:" + strconv.Itoa(i), Label: fmt.Sprintf("OpenCV camera %d", i)})
	}
	return devs, nil
}

func (d *GoCVDriver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	index, err := strconv.Atoi(strings.TrimPrefix(dev.ID, "gocv:"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad gocv device %q", ErrNoDevice, dev.ID)
	}
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: gocv device %d not opened", ErrNoDevice, index)
	}
	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	// OpenCV objects are not safe for concurrent use; release waits for
	// the last grab to return.
	var mu sync.Mutex
	mat := gocv.NewMat()
	grab := func() (image.Image, error) {
		mu.Lock()
		defer mu.Unlock()
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			return nil, nil
		}
		return mat.ToImage()
	}
	release := func() error {
		mu.Lock()
		defer mu.Unlock()
		_ = mat.Close()
		return vc.Close()
	}
	return newLiveTrack(d.Logger, liveOptions{
		label:   dev.Label,
		grab:    grab,
		release: release,
	}), nil
}
