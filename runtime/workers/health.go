package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"campus-dm/contract"
	"campus-dm/observability"
)

var _ contract.Worker = (*HealthWorker)(nil)

// HealthWorker samples the server's own process on a ticker and feeds the
// snapshot to the monitor backing /healthz.
type HealthWorker struct {
	log       *slog.Logger
	monitor   *observability.Monitor
	interval  time.Duration
	roomCount func() int
}

func NewHealthWorker(log *slog.Logger, monitor *observability.Monitor,
	interval time.Duration, roomCount func() int) *HealthWorker {
	return &HealthWorker{log: log, monitor: monitor, interval: interval, roomCount: roomCount}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping health worker")
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitor.SetLatest(observability.Stats{
				CPUPercent: cpu,
				RSSBytes:   rss,
				Goroutines: goruntime.NumGoroutine(),
				OpenRooms:  w.roomCount(),
			})
		}
	}
}

// selfStats retrieves memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
