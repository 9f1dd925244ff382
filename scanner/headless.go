package scanner

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soocke/qrscan-go/api"
	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/domain/scan"
)

const shutdownTimeout = 5 * time.Second

// RunHeadless starts scanning immediately and serves the HTTP control API
// until ctx is done. A failed first start is logged; POST /start retries.
func RunHeadless(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctl, err := BuildController(cfg, logger, nil)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return Serve(ctx, ctl, ln, logger)
}

// Serve runs the control API for ctl on ln. The controller is closed when
// ctx is done.
func Serve(ctx context.Context, ctl *scan.Controller, ln net.Listener, logger *slog.Logger) error {
	ctl.OnResult(func(r scan.Result) {
		logger.Info("result", "text", r.Text, "format", r.Format, "repeat", r.Repeat)
	})
	srv := &http.Server{
		Handler:           api.NewRouter(ctl, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("api listening", "addr", ln.Addr().String())

	startCtx, cancel := context.WithTimeout(ctx, api.StartTimeout)
	if err := ctl.StartStream(startCtx); err != nil {
		logger.Error("initial start failed", "error", err)
	}
	cancel()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	ctl.Close()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("api shutdown", "error", err)
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
