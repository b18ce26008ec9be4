package gateway

import "sync"

// SeenCache is a bounded FIFO set of recently observed event IDs. It is a
// fast-path optimization only; the durable ledger remains the source of
// truth for deduplication, so losing this cache (restart, scale-out) is
// harmless.
type SeenCache struct {
	mu    sync.Mutex
	max   int
	order []string
	set   map[string]struct{}
}

func NewSeenCache(max int) *SeenCache {
	if max <= 0 {
		max = 1024
	}
	return &SeenCache{
		max: max,
		set: make(map[string]struct{}, max),
	}
}

func (c *SeenCache) Seen(id string) bool {
	if c == nil || id == "" {
		return false
	}
	c.mu.Lock()
	_, ok := c.set[id]
	c.mu.Unlock()
	return ok
}

func (c *SeenCache) Add(id string) {
	if c == nil || id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[id]; ok {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.set, oldest)
	}
	c.order = append(c.order, id)
	c.set[id] = struct{}{}
}
