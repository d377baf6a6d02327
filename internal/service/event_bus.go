package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clinic-queue/internal/realtime"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	publishTimeout      = 5 * time.Second
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
)

// EventPublisher hands committed ticket events to every instance's realtime hub
type EventPublisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

// RedisEventBus publishes events on a Redis channel and relays the channel into a local hub
type RedisEventBus struct {
	client       *redis.Client
	channel      string
	log          *logrus.Logger
	reconnectMin time.Duration
	reconnectMax time.Duration
}

func NewRedisEventBus(client *redis.Client, channel string, log *logrus.Logger) *RedisEventBus {
	return &RedisEventBus{
		client:       client,
		channel:      channel,
		log:          log,
		reconnectMin: defaultReconnectMin,
		reconnectMax: defaultReconnectMax,
	}
}

// SetReconnect bounds the backoff between failed subscriptions
func (b *RedisEventBus) SetReconnect(minWait, maxWait time.Duration) {
	if minWait > 0 {
		b.reconnectMin = minWait
	}
	if maxWait >= b.reconnectMin {
		b.reconnectMax = maxWait
	}
}

// Publish is best effort. It runs after commit, so a request cancellation does not abort it.
func (b *RedisEventBus) Publish(ctx context.Context, event realtime.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Warnf("Failed to encode event %s: %+v", event.Event, err)
		return
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.WithFields(logrus.Fields{
			"event":   event.Event,
			"ticket":  event.TicketID,
			"version": event.Version,
		}).Warnf("Failed to publish event: %+v", err)
	}
}

// Run relays channel messages to deliver until ctx is done.
// A failed or dropped subscription is retried with exponential backoff.
func (b *RedisEventBus) Run(ctx context.Context, deliver func(realtime.Event)) error {
	wait := b.reconnectMin
	for {
		subscribed, err := b.relay(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			wait = b.reconnectMin
		}
		if err != nil {
			b.log.Warnf("Realtime event channel unavailable, retrying in %s: %+v", wait, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if wait *= 2; wait > b.reconnectMax {
			wait = b.reconnectMax
		}
	}
}

// relay runs one subscription and reports whether it got as far as subscribing
func (b *RedisEventBus) relay(ctx context.Context, deliver func(realtime.Event)) (bool, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.WithField("channel", b.channel).Info("Subscribed to realtime event channel")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-messages:
			if !ok {
				return true, fmt.Errorf("subscription to %s closed", b.channel)
			}
			var event realtime.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warnf("Failed to decode realtime event: %+v", err)
				continue
			}
			deliver(event)
		}
	}
}
