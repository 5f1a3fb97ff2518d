package reverse

import (
	"sync"

	"github.com/cuemby/coordinator/pkg/log"
)

// ExecutorRunningTaskCount is the executor_running_task_count reverse index:
// executor id -> non-negative running task count. The decrement saturates:
// decrementing past zero logs a warning and clamps at zero instead of going
// negative, and decrementing an executor with no recorded count inserts it
// at zero rather than failing.
type ExecutorRunningTaskCount struct {
	mu     sync.RWMutex
	counts map[string]uint64
}

// NewExecutorRunningTaskCount returns an empty counter set.
func NewExecutorRunningTaskCount() *ExecutorRunningTaskCount {
	return &ExecutorRunningTaskCount{counts: make(map[string]uint64)}
}

// Insert sets executorID's count to an explicit value, used when an executor
// first registers (RegisterExecutor initializes it to 0).
func (c *ExecutorRunningTaskCount) Insert(executorID string, count uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[executorID] = count
}

// Increment adds one to executorID's count, creating it at 1 if absent.
func (c *ExecutorRunningTaskCount) Increment(executorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[executorID]++
}

// Decrement subtracts one from executorID's count. If the count is already
// zero it logs a warning and leaves it at zero rather than underflowing. If
// executorID has no recorded count at all, it is inserted at zero.
func (c *ExecutorRunningTaskCount) Decrement(executorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, ok := c.counts[executorID]
	if !ok {
		c.counts[executorID] = 0
		return
	}
	if count > 0 {
		c.counts[executorID] = count - 1
		return
	}
	logger := log.WithExecutorID(executorID)
	logger.Warn().Msg("tried to decrement running task count below zero")
}

// Remove drops executorID entirely, used by RemoveExecutor.
func (c *ExecutorRunningTaskCount) Remove(executorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, executorID)
}

// Get returns executorID's count and whether it is tracked at all.
func (c *ExecutorRunningTaskCount) Get(executorID string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count, ok := c.counts[executorID]
	return count, ok
}

// Snapshot returns a copy of the full map for the snapshot codec.
func (c *ExecutorRunningTaskCount) Snapshot() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.counts))
	for id, count := range c.counts {
		out[id] = count
	}
	return out
}

// Replace overwrites the full map from a snapshot payload.
func (c *ExecutorRunningTaskCount) Replace(data map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]uint64, len(data))
	for id, count := range data {
		c.counts[id] = count
	}
}
