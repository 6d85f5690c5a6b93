package ui

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// UpdatesTopic carries JSON-encoded Updates.
const UpdatesTopic = "ui.updates"

const metaKeyUpdateType = "update_type"

// Handler consumes one encoded update.
type Handler func(ctx context.Context, payload []byte) error

// Bus is an in-memory pub/sub for view updates built on watermill's
// GoChannel. Publish blocks until every subscriber has acked, which keeps
// updates in order.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewBus creates a Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)

	return &Bus{
		pubsub: goChannel,
		logger: logger,
	}
}

// Publish encodes u and publishes it on UpdatesTopic.
func (b *Bus) Publish(u Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		b.logger.Error("failed to encode update", "type", u.Type, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaKeyUpdateType, string(u.Type))

	if err := b.pubsub.Publish(UpdatesTopic, msg); err != nil {
		b.logger.Warn("failed to publish update", "type", u.Type, "error", err)
	}
}

// Subscribe runs handler for every update until ctx is done or the bus is
// closed. It returns once the subscription is active.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubsub.Subscribe(ctx, UpdatesTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			if err := handler(msg.Context(), msg.Payload); err != nil {
				b.logger.Warn("update handler failed",
					"msg_id", msg.UUID,
					"type", msg.Metadata.Get(metaKeyUpdateType),
					"error", err,
				)
			}
			// Acked either way; a nack would redeliver to the same handler.
			msg.Ack()
		}
		b.logger.Debug("update subscription ended")
	}()

	return nil
}

// Close shuts the bus down and ends every subscription.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
