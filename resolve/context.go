package resolve

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Context carries the state shared by one top-level resolution: the memo
// cache, the run identity and the event sequence. Depth and the ancestor
// trail are deliberately not here; they travel by value in a Frame so
// parallel branches cannot corrupt each other.
type Context struct {
	RunID string
	Root  string

	mu    sync.Mutex
	cache map[string]string
	seq   atomic.Uint64
}

// NewContext creates the per-invocation state for one resolution run
// rooted at rootPath.
func NewContext(rootPath string) *Context {
	return &Context{
		RunID: uuid.NewString(),
		Root:  rootPath,
		cache: make(map[string]string),
	}
}

// Cached returns the memoized resolution for a path.
func (c *Context) Cached(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.cache[path]
	return content, ok
}

// Remember memoizes a path's resolved content for this run.
func (c *Context) Remember(path, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[path] = content
}

func (c *Context) nextSeq() uint64 {
	return c.seq.Add(1)
}

// Frame is the branch-local state of one recursive call: the node's
// distance from the root and the chain of ancestor paths leading to it.
// Frames are values; extending a trail always copies it.
type Frame struct {
	Depth int
	Trail []string
}

// onTrail reports whether path is among the frame's ancestors.
func (f Frame) onTrail(path string) bool {
	for _, p := range f.Trail {
		if p == path {
			return true
		}
	}
	return false
}

// child returns the frame for children of the node at path.
func (f Frame) child(path string) Frame {
	trail := make([]string, len(f.Trail)+1)
	copy(trail, f.Trail)
	trail[len(f.Trail)] = path
	return Frame{Depth: f.Depth + 1, Trail: trail}
}
