package workers

import (
	"context"
	"estate-chat/contract"
	"estate-chat/domain/event"
	"estate-chat/observability"
	"log/slog"
	"sync"
	"time"
)

// EventFanout broadcasts committed changes to the permanent sinks
// and to the live connections of the sender and the recipient.
//
// Delivery is best-effort: a sink failing or exceeding its timeout loses the event.
// Sinks are served concurrently but the next event waits for the current one,
// so a single connection sees the changes in commit order.
type EventFanout struct {
	log            *slog.Logger
	permanentSinks []contract.EventSink
	registry       contract.IRegistry
	changes        <-chan event.ChangeEvent
	monitoring     *observability.MonitoringManager
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, permanentSinks []contract.EventSink, registry contract.IRegistry,
	changes <-chan event.ChangeEvent, monitoring *observability.MonitoringManager, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		permanentSinks: permanentSinks,
		registry:       registry,
		changes:        changes,
		monitoring:     monitoring,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.changes:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout delivers one event to the permanent sinks and the participants' connections.
func (w *EventFanout) Fanout(ctx context.Context, evt event.ChangeEvent) {
	sinks := append([]contract.EventSink(nil), w.permanentSinks...)
	sinks = append(sinks, w.connectionSinks(evt)...)
	w.deliver(ctx, evt, sinks)
}

// DeliverToConnections skips the permanent sinks, used for events relayed from another instance.
func (w *EventFanout) DeliverToConnections(ctx context.Context, evt event.ChangeEvent) {
	w.deliver(ctx, evt, w.connectionSinks(evt))
}

func (w *EventFanout) connectionSinks(evt event.ChangeEvent) []contract.EventSink {
	record := evt.Record()
	return w.registry.GetSinksForUsers(record.SenderID, record.RecipientID)
}

func (w *EventFanout) deliver(ctx context.Context, evt event.ChangeEvent, sinks []contract.EventSink) {
	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := s.Consume(sinkCtx, evt); err != nil {
				w.monitoring.IncrSinkFailures()
				w.log.Debug("Sink failed to consume event", "type", evt.Type(), "error", err)
				return
			}
			w.monitoring.IncrEventsDelivered()
		}(sink)
	}
	wg.Wait()
}
