package history

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type dedupeState struct {
	Seen map[string]int64 `json:"seen"` // delivery key -> unix expiry
}

// DedupeIndex remembers which platform deliveries were already handled so
// redeliveries (Slack event retries, Telegram long-poll replays) do not
// re-enter the pipeline. Keys expire after a TTL and are dropped lazily on
// lookup or in Prune.
type DedupeIndex struct {
	path  string
	state dedupeState
	mu    sync.RWMutex
}

func NewDedupeIndex(path string) (*DedupeIndex, error) {
	d := &DedupeIndex{
		path: path,
		state: dedupeState{
			Seen: make(map[string]int64),
		},
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DedupeIndex) load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return d.save()
	}
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &d.state); err != nil {
		// Delivery keys are disposable, a corrupt file only costs duplicate
		// suppression until the TTL passes.
		slog.Warn("Failed to parse dedupe index, starting fresh", "path", d.path, "error", err)
		d.state = dedupeState{Seen: make(map[string]int64)}
	}
	if d.state.Seen == nil {
		d.state.Seen = make(map[string]int64)
	}
	return nil
}

func (d *DedupeIndex) save() error {
	data, err := json.MarshalIndent(d.state, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(d.path, bytes.NewReader(data))
}

func (d *DedupeIndex) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.save()
}

// CheckAndMark reports whether the key was already seen and still fresh. On
// a miss the key is marked with the given ttl, so the first caller wins.
func (d *DedupeIndex) CheckAndMark(key string, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()

	if expiry, exists := d.state.Seen[key]; exists {
		if expiry > now {
			return true
		}
		delete(d.state.Seen, key)
	}

	d.state.Seen[key] = now + int64(ttl.Seconds())
	return false
}

// Prune drops expired keys and returns how many were removed.
func (d *DedupeIndex) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()
	count := 0
	for k, expiry := range d.state.Seen {
		if expiry < now {
			delete(d.state.Seen, k)
			count++
		}
	}
	return count
}

func (d *DedupeIndex) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.state.Seen)
}
