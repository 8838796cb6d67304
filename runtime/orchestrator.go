// Package runtime handles event propagation between the write path and the live connections.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"estate-chat/contract"
	"estate-chat/domain/event"
	"estate-chat/observability"
	"estate-chat/runtime/workers"
	"log/slog"
	"sync"
	"time"
)

// Orchestrator is the change feed of the messages table.
// Services publish committed rows, the fanout worker delivers them to the
// permanent sinks and to the connections of both participants.
type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	monitoring     *observability.MonitoringManager
	permanentSinks []contract.EventSink
	extraWorkers   []contract.Worker
	changes        chan event.ChangeEvent
	sinkTimeout    time.Duration
	fanout         *workers.EventFanout
	done           chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	monitoring *observability.MonitoringManager, bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		monitoring:  monitoring,
		changes:     make(chan event.ChangeEvent, bufferSize),
		sinkTimeout: sinkTimeout,
		done:        make(chan struct{}),
	}
}

// Add registers sinks receiving every change, whoever the participants are.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// AddWorkers registers extra workers started under the same supervisor.
func (o *Orchestrator) AddWorkers(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, w...)
}

// Publish never blocks the write path: when the buffer is full the change is dropped
// and clients recover it through polling.
func (o *Orchestrator) Publish(e event.ChangeEvent) {
	select {
	case o.changes <- e:
		o.monitoring.IncrEventsPublished()
	default:
		o.monitoring.IncrEventsDropped()
		o.log.Warn("Change feed full, dropping event", "type", e.Type(), "id", e.Record().ID)
	}
}

func (o *Orchestrator) RegisterConnection(userID, connectionID string, sink contract.EventSink) {
	o.registry.Subscribe(userID, connectionID, sink)
	o.log.Debug("Connection registered", "user", userID, "connection", connectionID)
}

func (o *Orchestrator) UnregisterConnection(userID, connectionID string) {
	o.registry.Unsubscribe(userID, connectionID)
	o.log.Debug("Connection unregistered", "user", userID, "connection", connectionID)
}

// DeliverToConnections forwards changes relayed by another instance.
func (o *Orchestrator) DeliverToConnections(ctx context.Context, e event.ChangeEvent) {
	o.mu.Lock()
	fanout := o.fanout
	o.mu.Unlock()
	if fanout == nil {
		o.log.Debug("Relay event received before start, dropping")
		return
	}
	fanout.DeliverToConnections(ctx, e)
}

// Start builds the fanout and runs every worker under supervision in the background.
// Sinks and workers added after Start are ignored.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.fanout = workers.NewEventFanout(o.log, o.permanentSinks, o.registry, o.changes, o.monitoring, o.sinkTimeout)
	o.supervisor.Add(o.fanout)
	o.supervisor.Add(o.extraWorkers...)
	sinks, extra := len(o.permanentSinks), len(o.extraWorkers)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "sinks", sinks, "workers", extra+1)
	go func() {
		defer close(o.done)
		o.supervisor.Run(ctx)
	}()
}

// Stop cancels the supervised workers and waits for them.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	<-o.done
	o.log.Debug("Orchestrator stopped")
}
