//go:build !linux

package camera

import (
	"context"
	"log/slog"
)

// V4L2Driver is only functional on Linux; elsewhere it offers no devices.
type V4L2Driver struct {
	Logger *slog.Logger
	Glob   string
}

func (d *V4L2Driver) Name() string { return "v4l2" }

func (d *V4L2Driver) Devices(ctx context.Context) ([]Device, error) { return nil, nil }

func (d *V4L2Driver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	return nil, ErrNoDevice
}
