package livesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/repos"
)

// ErrNotReady is returned by Snapshot when the first load has not finished
// within Mirror.Wait.
var ErrNotReady = errors.New("live state not loaded yet")

const defaultWait = 5 * time.Second

// Mirror owns the subscriptions to both collections and keeps the latest
// booking.State. The state only changes through ApplyInventory/ApplyReservations.
type Mirror struct {
	feed *Feed

	// Wait caps how long Snapshot blocks for the first load. Zero waits for ctx alone.
	Wait time.Duration

	mu       sync.RWMutex
	state    booking.State
	loaded   map[string]bool
	ready    chan struct{}
	onUpdate []func(booking.State)
	unsubs   []func()
}

func NewMirror(feed *Feed) *Mirror {
	return &Mirror{feed: feed, Wait: defaultWait, loaded: map[string]bool{}, ready: make(chan struct{})}
}

// OnUpdate registers fn to run after each applied snapshot. Register before Start.
func (m *Mirror) OnUpdate(fn func(booking.State)) {
	m.mu.Lock()
	m.onUpdate = append(m.onUpdate, fn)
	m.mu.Unlock()
}

func (m *Mirror) Start(ctx context.Context) {
	m.unsubs = append(m.unsubs,
		m.feed.Subscribe(ctx, domain.CollectionInventory, func(docs []repos.Document) {
			items := repos.DecodeInventoryList(docs)
			m.apply(domain.CollectionInventory, func(s booking.State) booking.State { return s.ApplyInventory(items) })
		}),
		m.feed.Subscribe(ctx, domain.CollectionReservations, func(docs []repos.Document) {
			rs := repos.DecodeReservationList(docs)
			m.apply(domain.CollectionReservations, func(s booking.State) booking.State { return s.ApplyReservations(rs) })
		}),
	)
}

func (m *Mirror) Stop() {
	for _, u := range m.unsubs {
		u()
	}
	m.unsubs = nil
}

func (m *Mirror) apply(collection string, step func(booking.State) booking.State) {
	m.mu.Lock()
	m.state = step(m.state)
	first := !m.loaded[collection]
	m.loaded[collection] = true
	if first && len(m.loaded) == 2 {
		close(m.ready)
	}
	s := m.state
	hooks := append([]func(booking.State){}, m.onUpdate...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}

// Ready is closed once both collections have been delivered at least once.
func (m *Mirror) Ready() <-chan struct{} { return m.ready }

// Snapshot returns the latest state, waiting for the first delivery of both
// collections. It gives up with ctx's error when ctx ends first, or with
// ErrNotReady after m.Wait.
func (m *Mirror) Snapshot(ctx context.Context) (booking.State, error) {
	select {
	case <-m.ready:
		return m.current(), nil
	default:
	}
	var expired <-chan time.Time
	if m.Wait > 0 {
		timer := time.NewTimer(m.Wait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-m.ready:
	case <-ctx.Done():
		return booking.State{}, ctx.Err()
	case <-expired:
		return booking.State{}, ErrNotReady
	}
	return m.current(), nil
}

func (m *Mirror) current() booking.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
