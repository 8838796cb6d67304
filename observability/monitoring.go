package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served on the debug endpoint.
type MonitoringStats struct {
	ActiveConnections int     `json:"active_connections"`
	MessagesSent      uint64  `json:"messages_sent"`
	MessagesRead      uint64  `json:"messages_read"`
	EventsPublished   uint64  `json:"events_published"`
	EventsDropped     uint64  `json:"events_dropped"`
	EventsDelivered   uint64  `json:"events_delivered"`
	SinkFailures      uint64  `json:"sink_failures"`
	EventsRelayed     uint64  `json:"events_relayed"`
	RSSBytes          uint64  `json:"rss_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	NumGoroutine      int     `json:"num_goroutine"`
	UpdatedAt         string  `json:"updated_at"`
}

// MonitoringManager aggregates counters bumped from the hot path
// and refreshes a snapshot on each heartbeat.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	connections func() int

	MessagesSent    uint64
	MessagesRead    uint64
	EventsPublished uint64
	EventsDropped   uint64
	EventsDelivered uint64
	SinkFailures    uint64
	EventsRelayed   uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, connections: func() int { return 0 }}
}

// WithConnections plugs the live connection counter of the realtime registry.
func (mm *MonitoringManager) WithConnections(count func() int) *MonitoringManager {
	mm.connections = count
	return mm
}

func (mm *MonitoringManager) IncrMessagesSent()     { atomic.AddUint64(&mm.MessagesSent, 1) }
func (mm *MonitoringManager) AddMessagesRead(n int) { atomic.AddUint64(&mm.MessagesRead, uint64(n)) }
func (mm *MonitoringManager) IncrEventsPublished()  { atomic.AddUint64(&mm.EventsPublished, 1) }
func (mm *MonitoringManager) IncrEventsDropped()    { atomic.AddUint64(&mm.EventsDropped, 1) }
func (mm *MonitoringManager) IncrEventsDelivered()  { atomic.AddUint64(&mm.EventsDelivered, 1) }
func (mm *MonitoringManager) IncrSinkFailures()     { atomic.AddUint64(&mm.SinkFailures, 1) }
func (mm *MonitoringManager) IncrEventsRelayed()    { atomic.AddUint64(&mm.EventsRelayed, 1) }

// Refresh rebuilds the snapshot from the counters, the Go runtime and the given process figures.
func (mm *MonitoringManager) Refresh(rssBytes uint64, cpuPercent float64) MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		ActiveConnections: mm.connections(),
		MessagesSent:      atomic.LoadUint64(&mm.MessagesSent),
		MessagesRead:      atomic.LoadUint64(&mm.MessagesRead),
		EventsPublished:   atomic.LoadUint64(&mm.EventsPublished),
		EventsDropped:     atomic.LoadUint64(&mm.EventsDropped),
		EventsDelivered:   atomic.LoadUint64(&mm.EventsDelivered),
		SinkFailures:      atomic.LoadUint64(&mm.SinkFailures),
		EventsRelayed:     atomic.LoadUint64(&mm.EventsRelayed),
		RSSBytes:          rssBytes,
		CPUPercent:        cpuPercent,
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
		NumGoroutine:      runtime.NumGoroutine(),
		UpdatedAt:         time.Now().UTC().Format(time.RFC3339),
	}

	mm.mu.Lock()
	mm.latestStats = stats
	mm.mu.Unlock()

	mm.log.Debug("Stats refreshed",
		"connections", stats.ActiveConnections,
		"published", stats.EventsPublished,
		"dropped", stats.EventsDropped,
		"mem_mb", stats.AllocMemMb,
	)
	return stats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}

// AsMap flattens the snapshot for the debug inspector header.
func (s MonitoringStats) AsMap() map[string]any {
	return map[string]any{
		"Connections":     s.ActiveConnections,
		"MessagesSent":    s.MessagesSent,
		"MessagesRead":    s.MessagesRead,
		"EventsPublished": s.EventsPublished,
		"EventsDelivered": s.EventsDelivered,
		"EventsDropped":   s.EventsDropped,
		"SinkFailures":    s.SinkFailures,
		"EventsRelayed":   s.EventsRelayed,
		"RSSBytes":        s.RSSBytes,
		"CPUPercent":      s.CPUPercent,
		"Goroutines":      s.NumGoroutine,
		"UpdatedAt":       s.UpdatedAt,
	}
}
