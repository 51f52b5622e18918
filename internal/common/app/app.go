package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/armadaproject/ingestq/internal/common/logctx"
)

// CreateContextWithShutdown returns a context that is cancelled when SIGINT or SIGTERM is received.
func CreateContextWithShutdown() (*logctx.Context, func()) {
	ctx, cancel := logctx.WithCancel(logctx.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			ctx.Log.Infof("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
