package livesync

import (
	"context"
	"sync"
	"time"

	applog "rentdesk/internal/log"
	"rentdesk/internal/repos"
)

const (
	defaultRetryBase = 250 * time.Millisecond
	defaultRetryMax  = 10 * time.Second
)

// Lister reads a whole collection.
type Lister interface {
	List(ctx context.Context, collection string) ([]repos.Document, error)
}

// Feed is the subscribe side of the document store.
type Feed struct {
	hub   *Hub
	store Lister

	// RetryBase and RetryMax bound the backoff between failed reads.
	RetryBase time.Duration
	RetryMax  time.Duration
}

func NewFeed(hub *Hub, store Lister) *Feed {
	return &Feed{hub: hub, store: store, RetryBase: defaultRetryBase, RetryMax: defaultRetryMax}
}

// Subscribe calls onChange with the full record set of collection right away
// and again after every change, until ctx ends or unsubscribe is called.
// Failed reads are retried with backoff.
// Calls are sequential; onChange must tolerate being handed the same records twice.
func (f *Feed) Subscribe(ctx context.Context, collection string, onChange func([]repos.Document)) (unsubscribe func()) {
	ctx, stop := context.WithCancel(ctx)
	events, cancel := f.hub.Subscribe([]string{collection}, 1)

	go func() {
		defer cancel()
		if !f.deliver(ctx, collection, onChange) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if !f.deliver(ctx, collection, onChange) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(stop) }
}

// deliver lists collection until it succeeds, then hands the records to
// onChange. It returns false once ctx has ended.
func (f *Feed) deliver(ctx context.Context, collection string, onChange func([]repos.Document)) bool {
	backoff := f.RetryBase
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		docs, err := f.store.List(ctx, collection)
		if err == nil {
			onChange(docs)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		applog.Error(nil, "livesync.list.fail", err, map[string]any{
			"collection": collection, "attempt": attempt, "retry_in": backoff.String(),
		})
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, f.RetryBase, f.RetryMax)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if max > 0 && next > max {
		return max
	}
	return next
}
