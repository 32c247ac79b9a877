package merge

import (
	"sync"

	"github.com/miuzhaii/replygate/internal/message"
)

// Batch is one conversation's open collection window. Messages are appended
// in arrival order under the conversation lock. The cancel channel belongs
// to the timer goroutine watching the batch; closing it hands the flush
// over to the count path.
type Batch struct {
	Messages []message.Message

	cancel   chan struct{}
	flushing bool
}

// Registry owns the open batches, keyed by conversation. The default is an
// unbounded map; a bounded or evicting variant can replace it without
// touching the coordinator.
type Registry interface {
	Get(key string) (*Batch, bool)
	Put(key string, b *Batch)
	Detach(key string) (*Batch, bool)
	Len() int
}

type mapRegistry struct {
	mu      sync.Mutex
	batches map[string]*Batch
}

func NewMapRegistry() Registry {
	return &mapRegistry{batches: make(map[string]*Batch)}
}

func (r *mapRegistry) Get(key string) (*Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[key]
	return b, ok
}

func (r *mapRegistry) Put(key string, b *Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[key] = b
}

func (r *mapRegistry) Detach(key string) (*Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[key]
	if ok {
		delete(r.batches, key)
	}
	return b, ok
}

func (r *mapRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}
