package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/vanthaita/piratesocial-chat/observability"
)

// Reporter periodically logs a snapshot of the gateway counters so an
// operator can follow traffic without scraping the stats endpoint.
type Reporter struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewReporter(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *Reporter {
	return &Reporter{log: log, monitor: monitor, interval: interval}
}

func (w *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *Reporter) report() {
	stats := w.monitor.Snapshot()
	w.log.Info("Gateway stats",
		"active_connections", stats.ActiveConnections,
		"connections_opened", stats.ConnectionsOpened,
		"auth_failures", stats.AuthFailures,
		"messages_broadcast", stats.MessagesBroadcast,
		"deliveries", stats.Deliveries,
		"delivery_drops", stats.DeliveryDrops,
		"unicast_errors", stats.UnicastErrors,
		"cpu_percent", stats.ProcessCPUPercent,
		"ram_percent", stats.ProcessRAMPercent,
	)
}
