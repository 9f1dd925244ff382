package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackjack/webcam"
)

const (
	pixFmtMJPEG webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	pixFmtYUYV  webcam.PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24

	v4l2FrameTimeout = 1 // seconds
	v4l2DefaultWidth = 1280
)

// V4L2Driver opens Video4Linux capture devices under /dev.
type V4L2Driver struct {
	Logger *slog.Logger
	// Glob overrides the device pattern; defaults to /dev/video*.
	Glob string
}

func (d *V4L2Driver) Name() string { return "v4l2" }

func (d *V4L2Driver) Devices(ctx context.Context) ([]Device, error) {
	pattern := d.Glob
	if pattern == "" {
		pattern = "/dev/video*"
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	devs := make([]Device, 0, len(paths))
	for _, p := range paths {
		devs = append(devs, Device{ID: p, Label: v4l2Label(p)})
	}
	return devs, nil
}

// v4l2Label reads the driver supplied card name, falling back to the path.
func v4l2Label(path string) string {
	name, err := os.ReadFile(filepath.Join("/sys/class/video4linux", filepath.Base(path), "name"))
	if err != nil {
		return path
	}
	if s := strings.TrimSpace(string(name)); s != "" {
		return s
	}
	return path
}

func (d *V4L2Driver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	cam, err := webcam.Open(dev.ID)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	format, w, h, err := configureV4L2(cam, c)
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDevice, dev.ID, err)
	}
	_ = cam.SetBufferCount(2)
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, classifyOpenError(err)
	}
	if err := ctx.Err(); err != nil {
		_ = cam.StopStreaming()
		_ = cam.Close()
		return nil, err
	}
	if d.Logger != nil {
		d.Logger.Debug("v4l2 streaming", "device", dev.ID, "format", format, "width", w, "height", h)
	}

	grab := func() (image.Image, error) {
		if err := cam.WaitForFrame(v4l2FrameTimeout); err != nil {
			var timeout *webcam.Timeout
			if errors.As(err, &timeout) {
				return nil, nil
			}
			return nil, err
		}
		buf, err := cam.ReadFrame()
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, nil
		}
		if format == pixFmtMJPEG {
			return decodeCompressed(buf)
		}
		return yuyvToImage(buf, int(w), int(h))
	}
	release := func() error {
		return errors.Join(cam.StopStreaming(), cam.Close())
	}
	return newLiveTrack(d.Logger, liveOptions{
		label:    dev.Label,
		grab:     grab,
		interval: 0,
		release:  release,
	}), nil
}

// configureV4L2 prefers MJPEG, then YUYV, at the largest size not exceeding
// the requested width.
func configureV4L2(cam *webcam.Webcam, c Constraints) (webcam.PixelFormat, uint32, uint32, error) {
	formats := cam.GetSupportedFormats()
	var format webcam.PixelFormat
	switch {
	case formats[pixFmtMJPEG] != "":
		format = pixFmtMJPEG
	case formats[pixFmtYUYV] != "":
		format = pixFmtYUYV
	default:
		return 0, 0, 0, errors.New("no supported pixel format (need MJPEG or YUYV)")
	}
	want := c.Width
	if want <= 0 {
		want = v4l2DefaultWidth
	}
	w, h := pickFrameSize(cam.GetSupportedFrameSizes(format), uint32(want), uint32(c.Height))
	got, gw, gh, err := cam.SetImageFormat(format, w, h)
	if err != nil {
		return 0, 0, 0, err
	}
	if got != format {
		return 0, 0, 0, fmt.Errorf("driver switched pixel format to %v", got)
	}
	return got, gw, gh, nil
}

func pickFrameSize(sizes []webcam.FrameSize, maxW, wantH uint32) (uint32, uint32) {
	var bestW, bestH uint32
	for _, s := range sizes {
		w := s.MaxWidth
		if w > maxW && s.MinWidth <= maxW {
			w = maxW
		}
		if w > maxW {
			w = s.MinWidth
		}
		h := s.MaxHeight
		if s.MaxWidth > 0 && w != s.MaxWidth {
			h = s.MaxHeight * w / s.MaxWidth
		}
		if wantH > 0 && h > wantH && s.MinHeight <= wantH {
			h = wantH
		}
		if w <= maxW && w > bestW {
			bestW, bestH = w, h
		}
	}
	if bestW == 0 {
		if wantH == 0 {
			wantH = maxW * 9 / 16
		}
		return maxW, wantH
	}
	return bestW, bestH
}
