package broker

import (
	"context"

	"chronicle/internal/event"
)

type Producer interface {
	Publish(ctx context.Context, topic string, evt event.Event) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, evt event.Event) error
