package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/vanthaita/piratesocial-chat/observability"
)

// HealthMonitoring samples the gateway's own process and feeds CPU/RAM
// usage into the monitor, where the reporter and the stats endpoint pick
// it up.
type HealthMonitoring struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewHealthMonitoring(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *HealthMonitoring {
	return &HealthMonitoring{log: log, monitor: monitor, interval: interval}
}

func (w *HealthMonitoring) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Debug("Error while reading process cpu usage", "error", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Debug("Error while reading process ram usage", "error", err)
				continue
			}
			w.monitor.SetProcessStats(cpu, float64(ram))
		}
	}
}
