package monitor

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/patternbench/patternbench/internal/logging"
)

// Janitor runs periodic registry maintenance on a cron schedule owned by
// the application lifecycle: started by serve, stopped on shutdown. It
// replaces any notion of a free-running daemon goroutine.
type Janitor struct {
	monitor  *Monitor
	cron     *cron.Cron
	interval time.Duration
	logger   *logging.Logger
}

// NewJanitor creates a janitor that evicts surplus records and prunes
// empty callback buckets every interval.
func NewJanitor(m *Monitor, interval time.Duration, logger *logging.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Janitor{
		monitor:  m,
		cron:     cron.New(),
		interval: interval,
		logger:   logger.WithComponent("janitor"),
	}
}

// Start schedules the maintenance job and starts the scheduler.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@every "+j.interval.String(), j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("janitor started", "interval", j.interval.String())
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("janitor stopped")
}

// RunNow triggers an immediate sweep, independent of the schedule.
func (j *Janitor) RunNow() {
	j.sweep()
}

func (j *Janitor) sweep() {
	removed := j.monitor.Cleanup()
	j.monitor.PruneCallbacks()
	if removed > 0 {
		j.logger.Info("sweep complete", "evicted", removed)
	}
}
