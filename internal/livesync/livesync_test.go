package livesync_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/booking"
	"rentdesk/internal/domain"
	"rentdesk/internal/livesync"
	"rentdesk/internal/repos"
)

func wired(t *testing.T) (*repos.DocStore, *livesync.Hub) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repos.NewDocStore(db)
	hub := livesync.NewHub()
	store.OnChange(func(c string) { hub.Broadcast(livesync.Event{Collection: c}) })
	return store, hub
}

func TestHubDropsForSlowConsumers(t *testing.T) {
	hub := livesync.NewHub()
	ch, cancel := hub.Subscribe([]string{"inventory"}, 1)
	assert.Equal(t, 1, hub.Subscribers("inventory"))

	hub.Broadcast(livesync.Event{Collection: "inventory"})
	hub.Broadcast(livesync.Event{Collection: "inventory"})
	hub.Broadcast(livesync.Event{Collection: "reservations"})

	assert.Len(t, ch, 1)
	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers("inventory"))
	for range ch {
	}
}

func TestFeedDeliversSnapshotThenChanges(t *testing.T) {
	ctx := context.Background()
	store, hub := wired(t)
	_, err := store.Create(ctx, domain.CollectionInventory, map[string]any{"name": "Chair", "category": "Chairs", "quantity": 5})
	require.NoError(t, err)

	var last atomic.Int32
	var calls atomic.Int32
	unsub := livesync.NewFeed(hub, store).Subscribe(ctx, domain.CollectionInventory, func(docs []repos.Document) {
		calls.Add(1)
		last.Store(int32(len(docs)))
	})
	t.Cleanup(unsub)

	require.Eventually(t, func() bool { return last.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = store.Create(ctx, domain.CollectionInventory, map[string]any{"name": "Table", "category": "Tables", "quantity": 2})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return last.Load() == 2 }, time.Second, 5*time.Millisecond)

	unsub()
	n := calls.Load()
	_, err = store.Create(ctx, domain.CollectionInventory, map[string]any{"name": "Tent", "category": "Tents", "quantity": 1})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no deliveries after unsubscribe")
}

func TestMirrorFollowsBothCollections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, hub := wired(t)
	inv := repos.NewInventoryRepo(store)
	chairID, err := inv.Create(ctx, domain.InventoryItem{Name: "Chair", Category: "Chairs", Quantity: 5})
	require.NoError(t, err)

	m := livesync.NewMirror(livesync.NewFeed(hub, store))
	var updates atomic.Int32
	m.OnUpdate(func(booking.State) { updates.Add(1) })
	m.Start(ctx)
	t.Cleanup(m.Stop)

	waitCtx, done := context.WithTimeout(ctx, time.Second)
	defer done()
	st, err := m.Snapshot(waitCtx)
	require.NoError(t, err)
	require.Len(t, st.Inventory, 1)
	assert.Empty(t, st.Reservations)
	require.Eventually(t, func() bool { return updates.Load() >= 2 }, time.Second, 5*time.Millisecond)

	_, err = repos.NewReservationRepo(store).Create(ctx, domain.Reservation{
		ClientName: "Ana", Location: "Park", Time: "10:00",
		DateFrom: domain.MustDate("2025-06-01"), DateTo: domain.MustDate("2025-06-03"),
		Items:  []domain.LineItem{{ItemID: chairID, ItemName: "Chair", Quantity: 2}},
		Status: domain.StatusActive,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := m.Snapshot(ctx)
		return err == nil && len(st.Reservations) == 1
	}, time.Second, 5*time.Millisecond)
	st, _ = m.Snapshot(ctx)
	assert.True(t, booking.IsReservedOn(chairID, domain.MustDate("2025-06-02"), st.Reservations))
}

func TestMirrorSnapshotHonorsContext(t *testing.T) {
	_, hub := wired(t)
	m := livesync.NewMirror(livesync.NewFeed(hub, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// failingLister fails the first n List calls, then reads from the store.
type failingLister struct {
	store *repos.DocStore
	n     int32
	calls atomic.Int32
}

func (l *failingLister) List(ctx context.Context, collection string) ([]repos.Document, error) {
	if l.calls.Add(1) <= l.n {
		return nil, errors.New("database is locked")
	}
	if l.store == nil {
		return nil, nil
	}
	return l.store.List(ctx, collection)
}

func TestMirrorRecoversFromFailedFirstLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, hub := wired(t)
	_, err := repos.NewInventoryRepo(store).Create(ctx, domain.InventoryItem{Name: "Chair", Category: "Chairs", Quantity: 5})
	require.NoError(t, err)

	lister := &failingLister{store: store, n: 2}
	feed := livesync.NewFeed(hub, lister)
	feed.RetryBase = 5 * time.Millisecond
	feed.RetryMax = 20 * time.Millisecond
	m := livesync.NewMirror(feed)
	m.Start(ctx)
	t.Cleanup(m.Stop)

	waitCtx, done := context.WithTimeout(ctx, 2*time.Second)
	defer done()
	st, err := m.Snapshot(waitCtx)
	require.NoError(t, err)
	assert.Len(t, st.Inventory, 1)
	assert.GreaterOrEqual(t, lister.calls.Load(), int32(4), "two failures then one read per collection")
}

func TestMirrorSnapshotGivesUpWhenNeverLoaded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, hub := wired(t)
	feed := livesync.NewFeed(hub, &failingLister{n: 1 << 30})
	feed.RetryBase = 5 * time.Millisecond
	m := livesync.NewMirror(feed)
	m.Wait = 50 * time.Millisecond
	m.Start(ctx)
	t.Cleanup(m.Stop)

	start := time.Now()
	_, err := m.Snapshot(context.Background())
	assert.ErrorIs(t, err, livesync.ErrNotReady)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEventCodec(t *testing.T) {
	raw, err := livesync.EncodeEvent(livesync.Event{Collection: "inventory", Origin: "a"})
	require.NoError(t, err)
	ev, err := livesync.DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "inventory", ev.Collection)

	_, err = livesync.DecodeEvent(`{"origin":"a"}`)
	assert.Error(t, err)
	_, err = livesync.DecodeEvent(`nope`)
	assert.Error(t, err)
}

// Needs a running redis: RENTDESK_TEST_REDIS_URL=redis://localhost:6379/0
func TestRedisBridgeRelaysRemoteEvents(t *testing.T) {
	url := os.Getenv("RENTDESK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RENTDESK_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := livesync.NewHub(), livesync.NewHub()
	a, err := livesync.NewRedisBridge(ctx, url, hubA)
	require.NoError(t, err)
	defer a.Close()
	b, err := livesync.NewRedisBridge(ctx, url, hubB)
	require.NoError(t, err)
	defer b.Close()
	go a.Run(ctx)
	go b.Run(ctx)

	chA, cancelA := hubA.Subscribe([]string{"reservations"}, 4)
	defer cancelA()
	chB, cancelB := hubB.Subscribe([]string{"reservations"}, 4)
	defer cancelB()

	// give both subscriptions time to register with redis
	time.Sleep(100 * time.Millisecond)
	a.Notify("reservations")

	select {
	case ev := <-chB:
		assert.Equal(t, "reservations", ev.Collection)
	case <-time.After(2 * time.Second):
		t.Fatal("remote event not relayed")
	}
	select {
	case <-chA:
		t.Fatal("bridge echoed its own event")
	case <-time.After(100 * time.Millisecond):
	}
}
