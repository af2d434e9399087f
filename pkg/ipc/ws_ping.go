package ipc

import (
	"context"
	"time"

	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

type pinger interface {
	Ping(ctx context.Context) error
}

// keepAlive pings conn every interval until ctx is done. The first ping
// that fails or times out is handed to onDead and the loop stops.
func keepAlive(ctx context.Context, conn pinger, interval, timeout time.Duration, onDead func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err == nil {
				continue
			}
			if ctx.Err() == nil {
				telemetry.WSMessages.WithLabelValues("out", "ping_failed").Inc()
				onDead(err)
			}
			return
		}
	}
}
