package camera

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/vova616/screenshot"
)

// ScreenDriver captures the primary monitor, for codes shown on screen
// (e.g. a pairing code in a browser window).
type ScreenDriver struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Region limits capture to a rectangle; empty captures the whole screen.
	Region image.Rectangle
}

func (d *ScreenDriver) Name() string { return "screen" }

func (d *ScreenDriver) Devices(ctx context.Context) ([]Device, error) {
	return []Device{{ID: "screen:0", Label: "Primary screen"}}, nil
}

func (d *ScreenDriver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	region := d.Region
	return newLiveTrack(d.Logger, liveOptions{
		label:    dev.Label,
		grab:     func() (image.Image, error) { return grabScreen(region) },
		interval: interval,
	}), nil
}

// grabScreen returns a capture of region, or the active monitor when region is empty.
func grabScreen(region image.Rectangle) (image.Image, error) {
	if region.Empty() {
		img, err := screenshot.CaptureScreen()
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, err
	}
	return img, nil
}
