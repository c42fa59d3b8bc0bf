package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot_Aggregates_Counters(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor()

	monitor.IncrConnectionsOpened()
	monitor.IncrConnectionsOpened()
	monitor.IncrConnectionsClosed()
	monitor.IncrAuthFailures()
	monitor.IncrMessagesBroadcast()
	monitor.IncrDeliveries()
	monitor.IncrDeliveryDrops()
	monitor.IncrUnicastErrors()
	monitor.SetProcessStats(12.5, 3.25)

	snapshot := monitor.Snapshot()
	req.Equal(uint64(2), snapshot.ConnectionsOpened)
	req.Equal(uint64(1), snapshot.ConnectionsClosed)
	req.Equal(int64(1), snapshot.ActiveConnections)
	req.Equal(uint64(1), snapshot.AuthFailures)
	req.Equal(uint64(1), snapshot.MessagesBroadcast)
	req.Equal(uint64(1), snapshot.Deliveries)
	req.Equal(uint64(1), snapshot.DeliveryDrops)
	req.Equal(uint64(1), snapshot.UnicastErrors)
	req.Equal(12.5, snapshot.ProcessCPUPercent)
	req.Equal(3.25, snapshot.ProcessRAMPercent)
	req.NotEmpty(snapshot.SampledAt)
}

func TestMonitor_Is_Safe_For_Concurrent_Use(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				monitor.IncrDeliveries()
				monitor.SetProcessStats(1, 1)
				_ = monitor.Snapshot()
			}
		}()
	}
	wg.Wait()

	req.Equal(uint64(1600), monitor.Snapshot().Deliveries)
}
