package camera

import (
	"fmt"
	"log/slog"
)

// SourceOptions selects and parameterises the drivers behind an Acquirer.
type SourceOptions struct {
	Source   string // auto, v4l2, gocv, screen, file, ws
	FilePath string
	WSURL    string
}

// NewSourceAcquirer builds an Acquirer for the named source. "auto" tries
// V4L2 first, then OpenCV when compiled in.
func NewSourceAcquirer(logger *slog.Logger, opts SourceOptions) (*DeviceAcquirer, error) {
	var drivers []Driver
	switch opts.Source {
	case "", "auto":
		drivers = append(drivers, &V4L2Driver{Logger: logger})
		if GoCVAvailable {
			drivers = append(drivers, &GoCVDriver{Logger: logger})
		}
	case "v4l2":
		drivers = append(drivers, &V4L2Driver{Logger: logger})
	case "gocv":
		if !GoCVAvailable {
			return nil, fmt.Errorf("camera: source gocv requires building with -tags gocv")
		}
		drivers = append(drivers, &GoCVDriver{Logger: logger})
	case "screen":
		drivers = append(drivers, &ScreenDriver{Logger: logger})
	case "file":
		if opts.FilePath == "" {
			return nil, fmt.Errorf("camera: source file needs a path")
		}
		drivers = append(drivers, &FileDriver{Path: opts.FilePath, Logger: logger})
	case "ws":
		if opts.WSURL == "" {
			return nil, fmt.Errorf("camera: source ws needs a url")
		}
		drivers = append(drivers, &WSDriver{URL: opts.WSURL, Logger: logger})
	default:
		return nil, fmt.Errorf("camera: unknown source %q", opts.Source)
	}
	return NewAcquirer(logger, drivers...), nil
}
