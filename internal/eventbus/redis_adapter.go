package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBridge re-publishes whatever it receives on its mirrored Redis
// pub/sub channels (one per topic) into a local EventBus, and its Publish
// method sends an envelope to Redis under its topic. Local EventBus
// publishes are not forwarded to Redis automatically: only envelopes
// passed to Publish reach Redis.
// Optional: nil RedisBridge means single-process, in-memory only.
type RedisBridge struct {
	client *redis.Client
	local  *EventBus
	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedisBridge(addr string, local *EventBus) (*RedisBridge, error) {
	opts, err := redis.ParseURL(fmt.Sprintf("redis://%s", addr))
	if err != nil {
		return nil, fmt.Errorf("invalid redis address: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bridge := &RedisBridge{
		client: client,
		local:  local,
		pubsub: client.Subscribe(ctx),
		ctx:    ctx,
		cancel: cancel,
	}

	go bridge.receive()
	log.Printf("[eventbus] redis bridge connected at %s", addr)
	return bridge, nil
}

// MirrorTopic subscribes to topic on Redis, so any envelope another
// process publishes there surfaces to this process's local subscribers.
func (b *RedisBridge) MirrorTopic(topic string) error {
	return b.pubsub.Subscribe(b.ctx, topic)
}

// Publish sends env to Redis under its topic; local fan-out is the
// caller's (EventBus.Publish's) responsibility.
func (b *RedisBridge) Publish(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.client.Publish(b.ctx, env.Topic, payload).Err()
}

func (b *RedisBridge) receive() {
	ch := b.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[eventbus] dropping malformed redis envelope on %s: %v", msg.Channel, err)
				continue
			}
			b.local.Publish(env.Topic, env.Data)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisBridge) Close() error {
	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		log.Printf("[eventbus] error closing redis pubsub: %v", err)
	}
	return b.client.Close()
}
