package metrics

import (
	"time"

	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/reverse"
)

var collectorLog = log.WithComponent("metrics.collector")

const collectInterval = 15 * time.Second

// Collector periodically samples gauge metrics from a live set of reverse
// indexes. The Apply Engine mutates those indexes on every request; rather
// than push a gauge update from inside the hot path, a ticker pulls the
// current size on an interval, keeping the counters/histograms (updated
// inline by RecordApply) separate from these sampled gauges.
type Collector struct {
	idx      *reverse.Indexes
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector builds a Collector over idx using the default sampling
// interval.
func NewCollector(idx *reverse.Indexes) *Collector {
	return &Collector{
		idx:      idx,
		interval: collectInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins sampling in a background goroutine. Start may be called only
// once per Collector: every sampling goroutine closes doneCh on exit, so a
// second one panics on the second close.
func (c *Collector) Start() {
	go c.run()
}

// Stop signals the sampling goroutine to exit and waits for it to do so.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) collect() {
	UnassignedTasks.Set(float64(c.idx.UnassignedTasks.Len()))
	UnprocessedStateChanges.Set(float64(c.idx.UnprocessedStateChanges.Len()))
	collectorLog.Debug().
		Int("unassigned_tasks", c.idx.UnassignedTasks.Len()).
		Int("unprocessed_state_changes", c.idx.UnprocessedStateChanges.Len()).
		Msg("sampled reverse index gauges")
}
