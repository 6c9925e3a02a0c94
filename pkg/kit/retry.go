package kit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// WaitReady pings a dependency with exponential backoff until it answers,
// maxTries is exhausted or ctx ends.
func WaitReady(ctx context.Context, name string, maxTries uint, ping func(context.Context) error, log *zap.Logger) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxInterval = 30 * time.Second

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, ping(pctx)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("dependency not ready",
				zap.String("dependency", name),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return err
	}

	log.Info("dependency ready", zap.String("dependency", name), zap.Int("attempts", attempt))
	return nil
}
