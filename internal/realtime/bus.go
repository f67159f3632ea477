package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// BusMessage is a room broadcast forwarded between hub instances.
type BusMessage struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Bus carries broadcasts to the other instances serving the same boards.
type Bus interface {
	Publish(ctx context.Context, msg BusMessage) error
	// Subscribe delivers messages until ctx is done.
	Subscribe(ctx context.Context, deliver func(BusMessage)) error
}

// RedisBus fans broadcasts out over one Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
	retry   time.Duration
}

// NewRedisBus creates a Bus on a Redis pub/sub channel.
func NewRedisBus(client *redis.Client, channel string, log logrus.FieldLogger) *RedisBus {
	return &RedisBus{client: client, channel: channel, log: log, retry: time.Second}
}

// Publish sends msg to every instance subscribed to the channel.
func (b *RedisBus) Publish(ctx context.Context, msg BusMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode bus message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe reconnects after the channel closes and returns when ctx ends.
func (b *RedisBus) Subscribe(ctx context.Context, deliver func(BusMessage)) error {
	for {
		sub := b.client.Subscribe(ctx, b.channel)
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			if ctx.Err() != nil {
				return nil
			}
			b.log.WithError(err).Error("realtime bus subscribe failed, retrying")
			if !b.wait(ctx) {
				return nil
			}
			continue
		}

		b.consume(ctx, sub.Channel(), deliver)
		sub.Close()
		if ctx.Err() != nil {
			return nil
		}
		b.log.Error("realtime bus channel closed, reconnecting")
		if !b.wait(ctx) {
			return nil
		}
	}
}

func (b *RedisBus) consume(ctx context.Context, ch <-chan *redis.Message, deliver func(BusMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.WithError(err).Warn("unable to parse bus message")
				continue
			}
			deliver(m)
		}
	}
}

func (b *RedisBus) wait(ctx context.Context) bool {
	t := time.NewTimer(b.retry)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
