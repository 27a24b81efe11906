package storage

import "sync"

// blockCache is a thread-safe LRU of fetched byte blocks keyed by block
// index, bounded by the total bytes it holds.
type blockCache struct {
	maxBytes int64
	size     int64
	mu       sync.Mutex
	entries  map[int64]*entry
	head     *entry // most recently used
	tail     *entry // least recently used
}

type entry struct {
	key   int64
	value []byte
	prev  *entry
	next  *entry
}

func newBlockCache(maxBytes int64) *blockCache {
	return &blockCache{
		maxBytes: maxBytes,
		entries:  make(map[int64]*entry),
	}
}

func (c *blockCache) get(key int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *blockCache) put(key int64, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.size += int64(len(value) - len(e.value))
		e.value = value
		c.moveToFront(e)
	} else {
		e := &entry{key: key, value: value}
		c.entries[key] = e
		c.size += int64(len(value))
		c.addToFront(e)
	}

	// The newest block always stays, even if it alone exceeds the budget.
	for c.size > c.maxBytes && c.tail != c.head {
		c.evictTail()
	}
}

// bytes reports the cached byte total.
func (c *blockCache) bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *blockCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]*entry)
	c.head, c.tail, c.size = nil, nil, 0
}

func (c *blockCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *blockCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *blockCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *blockCache) evictTail() {
	t := c.tail
	if t == nil {
		return
	}
	delete(c.entries, t.key)
	c.size -= int64(len(t.value))
	c.remove(t)
}
