//go:build !gocv

package camera

import (
	"context"
	"log/slog"
)

// GoCVDriver is a placeholder when built without the gocv tag.
type GoCVDriver struct {
	Logger  *slog.Logger
	Indexes []int
}

// GoCVAvailable reports whether the OpenCV driver was compiled in.
const GoCVAvailable = false

func (d *GoCVDriver) Name() string { return "gocv" }

func (d *GoCVDriver) Devices(ctx context.Context) ([]Device, error) { return nil, nil }

func (d *GoCVDriver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	return nil, ErrNoDevice
}
