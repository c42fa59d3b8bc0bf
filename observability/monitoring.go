// Package observability is the injected sink for gateway telemetry.
// Connect, disconnect, broadcast, and error counts are recorded here so the
// behavior is testable without capturing process-wide output streams.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot aggregates all counters for the stats endpoint and the reporter.
type Snapshot struct {
	ConnectionsOpened uint64  `json:"connections_opened"`
	ConnectionsClosed uint64  `json:"connections_closed"`
	ActiveConnections int64   `json:"active_connections"`
	AuthFailures      uint64  `json:"auth_failures"`
	MessagesBroadcast uint64  `json:"messages_broadcast"`
	Deliveries        uint64  `json:"deliveries"`
	DeliveryDrops     uint64  `json:"delivery_drops"`
	UnicastErrors     uint64  `json:"unicast_errors"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	ProcessRAMPercent float64 `json:"process_ram_percent"`
	SampledAt         string  `json:"sampled_at"`
}

// Monitor collects gateway counters. Counter methods are safe for
// concurrent use on the broadcast hot path.
type Monitor struct {
	connectionsOpened uint64
	connectionsClosed uint64
	authFailures      uint64
	messagesBroadcast uint64
	deliveries        uint64
	deliveryDrops     uint64
	unicastErrors     uint64

	mu         sync.RWMutex
	cpuPercent float64
	ramPercent float64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) IncrConnectionsOpened() { atomic.AddUint64(&m.connectionsOpened, 1) }
func (m *Monitor) IncrConnectionsClosed() { atomic.AddUint64(&m.connectionsClosed, 1) }
func (m *Monitor) IncrAuthFailures()      { atomic.AddUint64(&m.authFailures, 1) }
func (m *Monitor) IncrMessagesBroadcast() { atomic.AddUint64(&m.messagesBroadcast, 1) }
func (m *Monitor) IncrDeliveries()        { atomic.AddUint64(&m.deliveries, 1) }
func (m *Monitor) IncrDeliveryDrops()     { atomic.AddUint64(&m.deliveryDrops, 1) }
func (m *Monitor) IncrUnicastErrors()     { atomic.AddUint64(&m.unicastErrors, 1) }

// SetProcessStats records the latest self-process sample from the health
// monitoring worker.
func (m *Monitor) SetProcessStats(cpuPercent, ramPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpuPercent = cpuPercent
	m.ramPercent = ramPercent
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	cpu, ram := m.cpuPercent, m.ramPercent
	m.mu.RUnlock()

	opened := atomic.LoadUint64(&m.connectionsOpened)
	closed := atomic.LoadUint64(&m.connectionsClosed)
	return Snapshot{
		ConnectionsOpened: opened,
		ConnectionsClosed: closed,
		ActiveConnections: int64(opened) - int64(closed),
		AuthFailures:      atomic.LoadUint64(&m.authFailures),
		MessagesBroadcast: atomic.LoadUint64(&m.messagesBroadcast),
		Deliveries:        atomic.LoadUint64(&m.deliveries),
		DeliveryDrops:     atomic.LoadUint64(&m.deliveryDrops),
		UnicastErrors:     atomic.LoadUint64(&m.unicastErrors),
		ProcessCPUPercent: cpu,
		ProcessRAMPercent: ram,
		SampledAt:         time.Now().UTC().Format(time.RFC3339),
	}
}
