package reader

import (
	"sync"
	"sync/atomic"
)

// Completion is the one-shot "frame has been handled" signal attached to an
// access unit. The callback runs on the first Resolve only.
type Completion struct {
	once     sync.Once
	resolved atomic.Bool
	fn       func(presented bool)
}

func NewCompletion(fn func(presented bool)) *Completion {
	return &Completion{fn: fn}
}

// Resolve runs the callback with presented, once. It reports whether this
// call was the one that resolved the completion. A nil Completion is a no-op.
func (c *Completion) Resolve(presented bool) (first bool) {
	if c == nil {
		return false
	}
	c.once.Do(func() {
		first = true
		c.resolved.Store(true)
		if c.fn != nil {
			c.fn(presented)
		}
	})
	return first
}

func (c *Completion) Resolved() bool {
	return c != nil && c.resolved.Load()
}
