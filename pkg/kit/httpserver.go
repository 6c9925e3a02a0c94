package kit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type shutdownKey struct{}

// ShuttingDown returns a channel closed when the server starts shutting down.
// Long-lived handlers such as event streams select on it to end early; normal
// requests ignore it and are drained. Outside RunHTTPServer it never closes.
func ShuttingDown(ctx context.Context) <-chan struct{} {
	if done, ok := ctx.Value(shutdownKey{}).(<-chan struct{}); ok {
		return done
	}
	return nil
}

// RunHTTPServer serves h until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts the server down and runs the cleanup hooks in order.
func RunHTTPServer(ctx context.Context, addr string, h http.Handler, log *zap.Logger, cleanup ...func(context.Context) error) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, h, log, cleanup...)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, log *zap.Logger, cleanup ...func(context.Context) error) error {
	stopping := make(chan struct{})
	var done <-chan struct{} = stopping

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithValue(context.Background(), shutdownKey{}, done)
		},
	}
	srv.RegisterOnShutdown(func() { close(stopping) })

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal", zap.Error(context.Cause(ctx)))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(sctx)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("graceful shutdown timed out, closing connections")
		err = errors.Join(err, srv.Close())
	}

	cctx, ccancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer ccancel()

	for _, fn := range cleanup {
		if cerr := fn(cctx); cerr != nil {
			log.Warn("cleanup failed", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
	}
	return err
}
