package destination

import (
	"context"
	"fmt"

	"chronicle/internal/broker"
	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
)

// QueueHandler publishes the event to a message topic via the broker
// producer. The topic option selects the destination topic.
type QueueHandler struct {
	producer     broker.Producer
	defaultTopic string
	logger       logger.Logger
}

func NewQueueHandler(producer broker.Producer, defaultTopic string, log logger.Logger) *QueueHandler {
	return &QueueHandler{
		producer:     producer,
		defaultTopic: defaultTopic,
		logger:       log,
	}
}

func (h *QueueHandler) Name() string {
	return constants.DestinationQueue
}

func (h *QueueHandler) Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result {
	topic := stringOption(options, "topic", h.defaultTopic)
	if topic == "" {
		return Result{Err: fmt.Errorf("queue destination requires a topic option")}
	}

	if err := h.producer.Publish(ctx, topic, evt); err != nil {
		return Result{Err: fmt.Errorf("queue publish failed: %w", err)}
	}

	return Result{Success: true, MessageID: evt.ID}
}
