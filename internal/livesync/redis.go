package livesync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	applog "rentdesk/internal/log"
)

const redisChannel = "rentdesk:changes"

// RedisBridge relays change events between instances that share one
// database, so every instance's subscribers re-read after a remote write.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	origin  string
	channel string
	out     chan string
}

// NewRedisBridge connects to url (redis://...) and verifies the connection.
func NewRedisBridge(ctx context.Context, url string, hub *Hub) (*RedisBridge, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		origin:  uuid.NewString(),
		channel: redisChannel,
		out:     make(chan string, 64),
	}, nil
}

// Notify queues a local change for publishing. It never blocks.
func (b *RedisBridge) Notify(collection string) {
	select {
	case b.out <- collection:
	default:
		applog.Warn(nil, "livesync.redis.queue.full", nil, map[string]any{"collection": collection})
	}
}

// Run publishes queued local changes and relays remote ones until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	in := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.out:
			payload, _ := EncodeEvent(Event{Collection: c, Origin: b.origin})
			if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil && ctx.Err() == nil {
				applog.Error(nil, "livesync.redis.publish.fail", err, map[string]any{"collection": c})
			}
		case msg, ok := <-in:
			if !ok {
				return
			}
			ev, err := DecodeEvent(msg.Payload)
			if err != nil {
				applog.Warn(nil, "livesync.redis.decode.fail", err, nil)
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			b.hub.Broadcast(ev)
		}
	}
}

func (b *RedisBridge) Close() error { return b.client.Close() }

func EncodeEvent(ev Event) (string, error) {
	raw, err := json.Marshal(ev)
	return string(raw), err
}

func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Collection == "" {
		return Event{}, fmt.Errorf("event without collection")
	}
	return ev, nil
}
