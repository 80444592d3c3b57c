package pipeline

import (
	"context"
	"time"

	"github.com/banshee-data/arm.monitor/internal/arm"
)

// Poller reads joint configurations from a RobotSource at a fixed
// interval on its own goroutine and feeds them to the monitor's ingest
// queue. It is the only piece that touches the telemetry side; all
// processing stays on the monitor's goroutine.
type Poller struct {
	source   RobotSource
	monitor  *Monitor
	interval time.Duration
}

// NewPoller creates a poller. Interval must be positive.
func NewPoller(source RobotSource, monitor *Monitor, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Poller{source: source, monitor: monitor, interval: interval}
}

// Run polls until the context is cancelled. Read failures are logged and
// skipped; the time delta for the next good sample spans the gap, so
// derivative estimates stay consistent with wall-clock time.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			joints, err := p.source.JointConfiguration()
			if err != nil {
				arm.Diagf("telemetry poll failed, skipping sample: %v", err)
				continue
			}
			dt := p.interval.Seconds()
			if !last.IsZero() {
				dt = now.Sub(last).Seconds()
			}
			last = now
			p.monitor.Ingest(arm.JointSample{Joints: joints, DT: dt, Time: now})
		}
	}
}
