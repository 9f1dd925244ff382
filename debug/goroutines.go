// Package debug runs periodic runtime loggers enabled by the debug flag.
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// StartGoroutineLogger logs goroutine count and stack memory every interval
// until ctx is done. Ticks that outlive a session show up here as a climbing
// goroutine count.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			metrics.Read(samples)
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			logger.Info("goroutine-stacks",
				slog.Uint64("goroutines", samples[0].Value.Uint64()),
				slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
				slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
				slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
			)
		}
	}()
}
