package optimizer

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
)

// MemoKey identifies one memoized decision.
type MemoKey struct {
	Level  int
	Bucket int
}

// Memo stores next-level decisions. Implementations must be safe for
// concurrent use; a Put for a key always carries the same level, so racing
// writers are harmless.
type Memo interface {
	Get(key MemoKey) (int, bool)
	Put(key MemoKey, level int)
}

// MemoStats reports memo effectiveness.
type MemoStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

// LRUMemo is a size-bounded least-recently-used memo.
type LRUMemo struct {
	mu    sync.Mutex // lru.Cache.Get reorders entries, so reads lock too
	cache *lru.Cache

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	onEvict   func(MemoKey, int)
}

// LRUOption configures an LRUMemo.
type LRUOption func(*LRUMemo)

// WithEvictionHook is called, under the memo lock, for every evicted entry.
func WithEvictionHook(fn func(key MemoKey, level int)) LRUOption {
	return func(m *LRUMemo) {
		m.onEvict = fn
	}
}

// NewLRUMemo returns a memo holding at most capacity entries. A capacity
// of zero or less means unbounded.
func NewLRUMemo(capacity int, opts ...LRUOption) *LRUMemo {
	if capacity < 0 {
		capacity = 0
	}
	m := &LRUMemo{cache: lru.New(capacity)}
	for _, opt := range opts {
		opt(m)
	}
	m.cache.OnEvicted = func(key lru.Key, value interface{}) {
		m.evictions.Add(1)
		if m.onEvict != nil {
			m.onEvict(key.(MemoKey), value.(int))
		}
	}
	return m
}

func (m *LRUMemo) Get(key MemoKey) (int, bool) {
	m.mu.Lock()
	v, ok := m.cache.Get(key)
	m.mu.Unlock()
	if !ok {
		m.misses.Add(1)
		return 0, false
	}
	m.hits.Add(1)
	return v.(int), true
}

func (m *LRUMemo) Put(key MemoKey, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key, level)
}

// Stats returns a snapshot of the counters.
func (m *LRUMemo) Stats() MemoStats {
	m.mu.Lock()
	size := m.cache.Len()
	m.mu.Unlock()
	return MemoStats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		Size:      size,
	}
}

type noopMemo struct{}

func (noopMemo) Get(MemoKey) (int, bool) { return 0, false }
func (noopMemo) Put(MemoKey, int)        {}
