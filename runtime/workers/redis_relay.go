package workers

import (
	"context"
	"estate-chat/domain/event"
	"estate-chat/observability"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Deliverer pushes an event to the live connections of this instance.
type Deliverer interface {
	DeliverToConnections(ctx context.Context, evt event.ChangeEvent)
}

// RedisRelay shares committed changes between instances behind a load balancer.
// As a sink it publishes the local changes, as a worker it delivers the changes of the other instances.
type RedisRelay struct {
	log        *slog.Logger
	rdb        *redis.Client
	channel    string
	nodeID     string
	deliverer  Deliverer
	monitoring *observability.MonitoringManager
}

func NewRedisRelay(log *slog.Logger, rdb *redis.Client, channel, nodeID string,
	deliverer Deliverer, monitoring *observability.MonitoringManager) *RedisRelay {
	return &RedisRelay{
		log:        log,
		rdb:        rdb,
		channel:    channel,
		nodeID:     nodeID,
		deliverer:  deliverer,
		monitoring: monitoring,
	}
}

// Consume publishes a local change, changes received from the relay are never published back.
func (r *RedisRelay) Consume(ctx context.Context, e event.ChangeEvent) error {
	if e.Origin() != "" {
		return nil
	}
	frame := event.ToFrame(e)
	frame.Origin = r.nodeID
	evt, err := event.FromFrame(frame)
	if err != nil {
		return err
	}
	payload, err := event.Marshal(evt)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish on %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.log.Info("Relay subscribed", "channel", r.channel, "node", r.nodeID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay channel %s closed", r.channel)
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload []byte) {
	evt, err := event.Unmarshal(payload)
	if err != nil {
		r.log.Warn("Dropping malformed relay frame", "error", err)
		return
	}
	if evt.Origin() == r.nodeID {
		return
	}
	r.monitoring.IncrEventsRelayed()
	r.deliverer.DeliverToConnections(ctx, evt)
}
