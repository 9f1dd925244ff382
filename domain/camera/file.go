package camera

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileDriver serves a still image as if it were a live camera. Useful for
// kiosks that scan a dropped-in file and for exercising the pipeline without hardware.
type FileDriver struct {
	Path     string
	Interval time.Duration
	Logger   *slog.Logger
}

func (d *FileDriver) Name() string { return "file" }

func (d *FileDriver) Devices(ctx context.Context) ([]Device, error) {
	if d.Path == "" {
		return nil, nil
	}
	return []Device{{ID: "file:" + d.Path, Label: filepath.Base(d.Path)}}, nil
}

func (d *FileDriver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	img, err := loadImage(d.Path)
	if err != nil {
		return nil, err
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return newLiveTrack(d.Logger, liveOptions{
		label:    dev.Label,
		grab:     func() (image.Image, error) { return img, nil },
		interval: interval,
	}), nil
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return decodeCompressed(data)
}
