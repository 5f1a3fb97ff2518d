package reverse

import (
	"sync"

	"github.com/cuemby/coordinator/pkg/ids"
)

// ContentChildren is the content_children reverse index: parent ContentId ->
// set of child ContentId. Content updates walk it to rewire child parent
// pointers; tombstone propagation walks it breadth-first.
type ContentChildren struct {
	mu       sync.RWMutex
	children map[string]map[string]struct{}
}

// NewContentChildren returns an empty index.
func NewContentChildren() *ContentChildren {
	return &ContentChildren{children: make(map[string]map[string]struct{})}
}

// Insert records child as a child of parent.
func (c *ContentChildren) Insert(parent, child ids.ContentId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := parent.Key()
	m, ok := c.children[key]
	if !ok {
		m = make(map[string]struct{})
		c.children[key] = m
	}
	m[child.Key()] = struct{}{}
}

// Remove drops child from parent's child set.
func (c *ContentChildren) Remove(parent, child ids.ContentId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.children[parent.Key()]
	if !ok {
		return
	}
	delete(m, child.Key())
}

// Get returns the children of parent, or an empty slice if parent has none.
func (c *ContentChildren) Get(parent ids.ContentId) []ids.ContentId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.children[parent.Key()]
	out := make([]ids.ContentId, 0, len(m))
	for key := range m {
		if id, err := ids.ParseKey(key); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// MoveChildren atomically moves oldParent's entire child set onto newParent,
// used by update_content's parent-pointer rewiring ("replace_parent
// atomically moves the children set"). oldParent's group key is dropped
// entirely, matching the expectation that
// content_children[{"p",1}] is absent afterward, not merely empty. Any
// children newParent already had (there normally are none — newParent is a
// freshly written version) are kept alongside the moved set.
func (c *ContentChildren) MoveChildren(oldParent, newParent ids.ContentId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	moved, ok := c.children[oldParent.Key()]
	delete(c.children, oldParent.Key())
	if !ok || len(moved) == 0 {
		return
	}
	m, ok := c.children[newParent.Key()]
	if !ok {
		m = make(map[string]struct{}, len(moved))
		c.children[newParent.Key()] = m
	}
	for child := range moved {
		m[child] = struct{}{}
	}
}

// Snapshot returns every (parent key, child key) pair for the snapshot
// codec.
func (c *ContentChildren) Snapshot() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.children))
	for parent, m := range c.children {
		children := make([]string, 0, len(m))
		for child := range m {
			children = append(children, child)
		}
		out[parent] = children
	}
	return out
}

// Replace overwrites the whole index from a snapshot payload.
func (c *ContentChildren) Replace(data map[string][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = make(map[string]map[string]struct{}, len(data))
	for parent, children := range data {
		m := make(map[string]struct{}, len(children))
		for _, child := range children {
			m[child] = struct{}{}
		}
		c.children[parent] = m
	}
}
