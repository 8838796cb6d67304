package workers

import (
	"context"
	"estate-chat/domain/event"
	"estate-chat/observability"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	events []event.ChangeEvent
}

func (d *recordingDeliverer) DeliverToConnections(_ context.Context, evt event.ChangeEvent) {
	d.events = append(d.events, evt)
}

func TestRedisRelay_Handle(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	deliverer := &recordingDeliverer{}
	monitoring := observability.NewMonitoringManager(log)
	relay := NewRedisRelay(log, nil, "estate-chat:messages", "node-a", deliverer, monitoring)

	local := inserted("a", "b")
	local.OriginID = "node-a"
	own, err := event.Marshal(local)
	req.NoError(err)

	remote := inserted("c", "d")
	remote.OriginID = "node-b"
	other, err := event.Marshal(remote)
	req.NoError(err)

	// When frames are received from the channel
	relay.handle(context.Background(), own)
	relay.handle(context.Background(), []byte("{not json"))
	relay.handle(context.Background(), other)

	// Then only the change of the other instance is delivered
	req.Len(deliverer.events, 1)
	req.Equal(remote.Message.ID, deliverer.events[0].Record().ID)
	req.Equal("node-b", deliverer.events[0].Origin())
	req.Equal(uint64(1), monitoring.EventsRelayed)
}

func TestRedisRelay_Consume_Ignores_Relayed_Events(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	relay := NewRedisRelay(log, nil, "estate-chat:messages", "node-a", &recordingDeliverer{},
		observability.NewMonitoringManager(log))

	relayed := inserted("a", "b")
	relayed.OriginID = "node-b"

	// The nil client is never reached
	req.NoError(relay.Consume(context.Background(), relayed))
}
