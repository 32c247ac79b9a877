package history

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

type kvState struct {
	Entries map[string]string `json:"entries"`
}

// KV is a small persisted string map, used for decision records.
// Values are opaque to the store; callers own their encoding.
type KV struct {
	path  string
	state kvState
	mu    sync.RWMutex
}

func NewKV(path string) (*KV, error) {
	s := &KV{
		path: path,
		state: kvState{
			Entries: make(map[string]string),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *KV) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.save()
	}
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		// Decision records are disposable, a corrupt file only costs cache hits.
		slog.Warn("Failed to parse kv store, starting fresh", "path", s.path, "error", err)
		s.state = kvState{Entries: make(map[string]string)}
	}
	if s.state.Entries == nil {
		s.state.Entries = make(map[string]string)
	}
	return nil
}

func (s *KV) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

func (s *KV) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *KV) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state.Entries[key]
	return value, ok
}

func (s *KV) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Entries[key] = value
}

func (s *KV) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Entries, key)
}

func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Entries)
}
