package sqlite

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs a background goroutine that periodically purges expired
// refresh tokens so revoked or stale sessions do not accumulate.
type Sweeper struct {
	store    *Store
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a new Sweeper. Call Start() to begin sweeping.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(sw.done)

		sw.runSweep(ctx)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runSweep(ctx)
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	<-sw.done
}

func (sw *Sweeper) runSweep(ctx context.Context) {
	n, err := sw.store.PurgeExpiredRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		slog.Warn("sweeper: purge refresh tokens", "error", err)
		return
	}
	if n > 0 {
		slog.Info("sweeper: purged expired refresh tokens", "count", n)
	}
}
