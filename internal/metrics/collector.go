package metrics

import (
	"context"
	"log/slog"
	"time"
)

// JobCounter reports how many scheduled automations are currently armed.
// Satisfied by *schedule.Scheduler.
type JobCounter interface {
	ActiveJobCount() int
}

// Collector periodically samples gauges that have no natural call site
// to push from directly, such as the scheduler's current job count.
type Collector struct {
	metrics    *Metrics
	jobCounter JobCounter
	logger     *slog.Logger
	stopCh     chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(metrics *Metrics, jobCounter JobCounter, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		metrics:    metrics,
		jobCounter: jobCounter,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins sampling at regular intervals until ctx is cancelled or
// Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collectOnce() {
	if c.jobCounter == nil {
		return
	}
	c.metrics.SetScheduledJobCount(float64(c.jobCounter.ActiveJobCount()))
}
