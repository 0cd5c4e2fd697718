package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// lockedPrinter serializes print attempts across host processes that share
// one physical printer.
type lockedPrinter struct {
	Printer
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

// NewLockedPrinter wraps p so every Print holds a Redis lock named after the printer.
// The lock TTL must exceed the longest expected print attempt.
func NewLockedPrinter(p Printer, locker *redislock.Client, ttl time.Duration) Printer {
	info := p.Info()
	return &lockedPrinter{
		Printer: p,
		locker:  locker,
		key:     "printer-lock:" + info.Type + ":" + info.Target,
		ttl:     ttl,
	}
}

func (p *lockedPrinter) Print(ctx context.Context, data []byte) error {
	lock, err := p.locker.Obtain(ctx, p.key, p.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(200 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w, held by another host: %w", ErrBusy, err)
	} else if err != nil {
		return fmt.Errorf("printer: failed to obtain lock: %w", err)
	}
	defer func() {
		// Release with a fresh context so an expired attempt still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	return p.Printer.Print(ctx, data)
}
