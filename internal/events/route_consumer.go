package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/pkg/domain"
	"github.com/freightline/service-loads/pkg/kafka"
)

// RouteApplier is the slice of the load service the consumer needs.
type RouteApplier interface {
	ApplyExternalResolution(ctx context.Context, evt MapRouteLoadedEvent) error
}

// RouteLoadedConsumer consumes route notifications from the map rendering
// service and folds them into the per-load coordinators. A notification that
// races a local in-flight resolution is dropped by the coordinator, so
// redelivery is harmless.
type RouteLoadedConsumer struct {
	consumer *kafka.Consumer
	applier  RouteApplier
	logger   *zap.Logger
}

// NewRouteLoadedConsumer creates a consumer on the map events topic.
func NewRouteLoadedConsumer(brokers []string, groupID string, applier RouteApplier, logger *zap.Logger) *RouteLoadedConsumer {
	return &RouteLoadedConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicMapEvents, logger),
		applier:  applier,
		logger:   logger,
	}
}

// Start consumes until the context is cancelled.
func (c *RouteLoadedConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting route loaded consumer", zap.String("topic", TopicMapEvents))
	return c.consumer.Consume(ctx, c.handleMessage)
}

func (c *RouteLoadedConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed envelope; committing avoids a redelivery loop.
		c.logger.Warn("skipping malformed cloud event", zap.Error(err))
		return nil
	}

	if event.Type != MapRouteLoaded {
		return nil
	}

	var payload MapRouteLoadedEvent
	if err := event.ParseData(&payload); err != nil {
		c.logger.Warn("skipping unparseable route loaded payload",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil
	}

	if err := c.applier.ApplyExternalResolution(ctx, payload); err != nil {
		// A deleted load is final; anything else is worth a retry.
		if domain.IsNotFound(err) {
			c.logger.Warn("route loaded for unknown load",
				zap.String("load_id", payload.LoadID.String()),
			)
			return nil
		}
		return err
	}

	c.logger.Info("applied external route resolution",
		zap.String("load_id", payload.LoadID.String()),
		zap.Float64("distance_miles", payload.DistanceMiles),
	)
	return nil
}

// Close closes the underlying consumer.
func (c *RouteLoadedConsumer) Close() error {
	return c.consumer.Close()
}
