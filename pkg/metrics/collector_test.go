package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cuemby/coordinator/pkg/reverse"
)

func TestCollectorSamplesGaugesOnStart(t *testing.T) {
	idx := reverse.New()
	idx.UnassignedTasks.Insert("t1")
	idx.UnassignedTasks.Insert("t2")
	idx.UnprocessedStateChanges.Insert("sc1")

	c := NewCollector(idx)
	c.interval = 10 * time.Millisecond
	c.Start()
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)

	if got := testutil.ToFloat64(UnassignedTasks); got != 2 {
		t.Errorf("UnassignedTasks gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(UnprocessedStateChanges); got != 1 {
		t.Errorf("UnprocessedStateChanges gauge = %v, want 1", got)
	}
}

func TestCollectorStopEndsSampling(t *testing.T) {
	idx := reverse.New()
	c := NewCollector(idx)
	c.interval = 5 * time.Millisecond
	c.Start()
	c.Stop()

	select {
	case <-c.doneCh:
	default:
		t.Fatal("Stop() returned before sampling goroutine exited")
	}
}
