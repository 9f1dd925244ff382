package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/url"

	"github.com/gorilla/websocket"
)

// WSDriver receives frames from a remote camera (typically a phone) that
// pushes one JPEG or PNG per binary WebSocket message.
type WSDriver struct {
	URL    string
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

func (d *WSDriver) Name() string { return "ws" }

func (d *WSDriver) Devices(ctx context.Context) ([]Device, error) {
	if d.URL == "" {
		return nil, nil
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("ws: parse url: %w", err)
	}
	return []Device{{ID: d.URL, Label: "remote " + u.Host}}, nil
}

// Open dials the remote and forwards the requested facing mode as a query
// parameter so the sender can pick its camera.
func (d *WSDriver) Open(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("ws: parse url: %w", err)
	}
	if c.FacingMode != FacingAny {
		q := u.Query()
		q.Set("facing", string(c.FacingMode))
		u.RawQuery = q.Encode()
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, fmt.Errorf("%w: ws status %d", ErrPermissionDenied, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: ws dial: %w", ErrNoDevice, err)
	}
	grab := func() (image.Image, error) {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				// gorilla/websocket connections are unusable after a read error.
				return nil, fmt.Errorf("%w: ws read: %w", ErrEndOfStream, err)
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			return decodeCompressed(data)
		}
	}
	return newLiveTrack(d.Logger, liveOptions{
		label:     dev.Label,
		grab:      grab,
		interrupt: func() { _ = conn.Close() },
		release: func() error {
			// interrupt already closed the connection; a second close only reports that.
			_ = conn.Close()
			return nil
		},
	}), nil
}
