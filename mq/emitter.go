// Package mq moves order events between the order service and its listeners.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"storefront/models"

	"github.com/redis/go-redis/v9"
)

// OrderEventsChannel is the default Redis Pub/Sub channel and Kafka topic.
const OrderEventsChannel = "order-events"

type Publisher interface {
	Publish(ctx context.Context, ev models.OrderEvent) error
}

// Handler consumes one decoded event.
type Handler func(ev models.OrderEvent)

// RedisPublisher publishes events on a Pub/Sub channel.
type RedisPublisher struct {
	conn    *redis.Client
	channel string
}

func NewRedisPublisher(conn *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = OrderEventsChannel
	}
	return &RedisPublisher{conn: conn, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev models.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	slog.Debug("order event published", "channel", p.channel, "type", ev.Type, "order_id", ev.OrderID)
	return nil
}

// RedisSubscriber delivers events from a Pub/Sub channel until ctx is done.
type RedisSubscriber struct {
	conn    *redis.Client
	channel string
}

func NewRedisSubscriber(conn *redis.Client, channel string) *RedisSubscriber {
	if channel == "" {
		channel = OrderEventsChannel
	}
	return &RedisSubscriber{conn: conn, channel: channel}
}

func (s *RedisSubscriber) Run(ctx context.Context, handle Handler) error {
	sub := s.conn.Subscribe(ctx, s.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so no early event is lost
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	slog.Info("listening for order events", "channel", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.OrderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed order event", "err", err)
				continue
			}
			handle(ev)
		}
	}
}

// Fanout publishes to every target and reports the joined failures.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev models.OrderEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
