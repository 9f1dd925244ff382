// Package scanner assembles the scan controller from configuration and runs
// it without a GUI.
package scanner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/domain/camera"
	"github.com/soocke/qrscan-go/domain/decode"
	"github.com/soocke/qrscan-go/domain/scan"
)

// BuildController wires the configured frame source and decoder into a
// controller. sink may be nil.
func BuildController(cfg *config.Config, logger *slog.Logger, sink scan.VideoSink) (*scan.Controller, error) {
	acq, err := camera.NewSourceAcquirer(logger, camera.SourceOptions{
		Source:   cfg.Source,
		FilePath: cfg.FilePath,
		WSURL:    cfg.WSURL,
	})
	if err != nil {
		return nil, err
	}
	dec, err := decode.NewZXing(cfg.Formats, cfg.TryHarder)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	opts := []scan.Option{
		scan.WithPeriod(time.Duration(cfg.TickMillis) * time.Millisecond),
		scan.WithMaxWidth(cfg.MaxBufferWidth),
		scan.WithStatsInterval(time.Duration(cfg.StatsSeconds) * time.Second),
		scan.WithRecentResults(cfg.RecentResults),
		scan.WithConstraints(camera.Constraints{
			FacingMode: camera.FacingMode(cfg.FacingMode),
			Device:     cfg.Device,
		}),
	}
	if sink != nil {
		opts = append(opts, scan.WithSink(sink))
	}
	return scan.New(acq, dec, logger, opts...), nil
}
