package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// KV is the persistence the cache writes through, satisfied by the history
// store's decision kv.
type KV interface {
	KVGet(key string) (string, bool)
	KVSet(key, value string) error
}

// Record is the stored decision. Expiry is passive: records are never swept,
// a stale one is simply ignored on read and overwritten on the next store.
type Record struct {
	Value     bool  `json:"v"`
	Timestamp int64 `json:"ts"` // unix seconds
}

const keyPrefix = "decision_"

// Fingerprint derives the kv key for a message text.
func Fingerprint(text string) string {
	return keyPrefix + fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// Cache memoizes reply decisions per message text. A TTL of zero or below
// disables it entirely: lookups always miss and stores are dropped.
type Cache struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

func New(kv KV, ttl time.Duration) *Cache {
	return &Cache{
		kv:  kv,
		ttl: ttl,
		now: time.Now,
	}
}

// Lookup returns the cached decision for a text. Anything unreadable counts
// as a miss, the caller falls through to a fresh judgment.
func (c *Cache) Lookup(text string) (value bool, ok bool) {
	if c.ttl <= 0 {
		return false, false
	}

	raw, found := c.kv.KVGet(Fingerprint(text))
	if !found {
		return false, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Debug("Unreadable decision record, treating as miss", "error", err)
		return false, false
	}

	age := c.now().Unix() - rec.Timestamp
	if age >= int64(c.ttl.Seconds()) {
		return false, false
	}
	return rec.Value, true
}

// Store persists a decision, overwriting any previous record for the text.
func (c *Cache) Store(text string, value bool) error {
	if c.ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(Record{Value: value, Timestamp: c.now().Unix()})
	if err != nil {
		return err
	}
	return c.kv.KVSet(Fingerprint(text), string(data))
}
