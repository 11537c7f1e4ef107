package kvstore

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type shard struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

// MemoryStore is an in-process, sharded-map Store with lazy TTL expiry:
// a shard's entries are only reaped when touched by a Get, matching the
// production KV's own lazy-expiry semantics rather than running a
// background sweep. Grounded on httpclient.HostSemaphore's lazily-created-
// resource-under-mutex shape, extended across 16 shards since this store
// serves reads for every active channel rather than one lock per host.
type MemoryStore struct {
	shards [numShards]*shard
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	for i := range m.shards {
		m.shards[i] = &shard{data: make(map[string]memoryEntry)}
	}
	return m
}

func (m *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%numShards]
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) > maxValueBytes {
		return ErrValueTooLarge
	}
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s := m.shardFor(key)
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
