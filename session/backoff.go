package session

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"campus-dm/errors"
)

// Backoff bounds how a session retries transient store and channel faults.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Delay returns the wait before the given retry, doubling from Base and
// capped at Max. The first attempt is attempt 0 and waits nothing.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// retry runs op up to b.Attempts times, waiting between attempts. Only
// transient infrastructure faults are retried; domain errors such as an empty
// message surface immediately.
func (b Backoff) retry(ctx context.Context, log *slog.Logger, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		if delay := b.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		log.Warn("Transient failure, retrying", "attempt", attempt+1, "error", err)
	}
	return err
}

func transient(err error) bool {
	return stderrors.Is(err, errors.ErrStoreUnavailable) ||
		stderrors.Is(err, errors.ErrChannelUnavailable)
}
