package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown cancels the run when SIGTERM or SIGINT arrives. It returns
// once either the signal was handled or ctx is done.
func ListenForShutdown(ctx context.Context, signalChan chan os.Signal, cancel context.CancelFunc, l *zap.Logger) {
	defer signal.Stop(signalChan)
	select {
	case sig := <-signalChan:
		l.Sugar().Infow("Caught signal, cancelling run", zap.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
	}
}
