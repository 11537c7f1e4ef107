package pipeline

import (
	"container/list"
	"sync"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/channelstore"
)

// segmentLRUCapacity and segmentLRUTTL match spec.md §4.6 step 3: a small
// second-level cache in front of channelstore.Store specifically for the
// segment-passthrough hot path, so a burst of segment requests for the
// same channel never fans out into a store lookup per request.
const (
	segmentLRUCapacity = 100
	segmentLRUTTL      = 60 * time.Second
)

type channelLRUEntry struct {
	key      string
	channel  channelstore.Channel
	cachedAt time.Time
}

// channelLRU is a fixed-capacity, TTL-bounded LRU cache of Channel lookups.
// Entries are immutable per key until TTL expiry, matching the shared-
// resource policy for this cache.
type channelLRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	index    map[string]*list.Element
}

func newChannelLRU(capacity int, ttl time.Duration) *channelLRU {
	return &channelLRU{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *channelLRU) get(key string) (channelstore.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return channelstore.Channel{}, false
	}
	entry := el.Value.(*channelLRUEntry)
	if time.Since(entry.cachedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.index, key)
		return channelstore.Channel{}, false
	}
	c.order.MoveToFront(el)
	return entry.channel, true
}

func (c *channelLRU) put(key string, ch channelstore.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*channelLRUEntry).channel = ch
		el.Value.(*channelLRUEntry).cachedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}
	entry := &channelLRUEntry{key: key, channel: ch, cachedAt: time.Now()}
	el := c.order.PushFront(entry)
	c.index[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*channelLRUEntry).key)
		}
	}
}
