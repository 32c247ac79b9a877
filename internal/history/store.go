package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	stdatomic "sync/atomic"
	"time"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/message"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

type Operation int

const (
	OpRecordMessage Operation = iota
	OpReadRecent
	OpMarkRecalled
	OpResetConversation
	OpGetConversation
	OpEffectivePersona
	OpGetPersona
	OpListPersonas
	OpSavePersona
	OpDeletePersona
	OpSetDefaultPersona
	OpDefaultPersonaID
	OpGetBinding
	OpListBindings
	OpBindChannel
	OpSaveKV
	OpSaveDeliveries
)

type Request struct {
	Op       Operation
	Payload  interface{}
	Result   chan error
	Response chan interface{}
}

type RecordMessagePayload struct {
	Key   string
	Entry Entry
}

type ReadRecentPayload struct {
	Key   string
	Limit int // 0 = all
}

type MarkRecalledPayload struct {
	Key       string
	MessageID string
}

type ResetConversationPayload struct {
	Key string
}

type GetConversationPayload struct {
	Key string
}

type EffectivePersonaPayload struct {
	Key string
}

type GetPersonaPayload struct {
	ID string
}

type SavePersonaPayload struct {
	Persona Persona
}

type DeletePersonaPayload struct {
	ID string
}

type SetDefaultPersonaPayload struct {
	ID string
}

type GetBindingPayload struct {
	Key string
}

type BindChannelPayload struct {
	Key       string
	PersonaID string // empty removes the binding
}

// Store is the single writer for all workspace state: conversation
// transcripts, the conversation index, personas, channel bindings, and the
// decision kv. All mutations go through the worker loop.
type Store struct {
	workspaceID              string
	basePath                 string
	inbox                    chan Request
	kv                       *KV
	dedupe                   *DedupeIndex
	fileLock                 *FileLock
	quit                     chan struct{}
	wg                       sync.WaitGroup
	index                    *ConversationIndex
	personas                 *PersonaFile
	channels                 *ChannelFile
	running                  stdatomic.Bool
	transcriptRotateMaxBytes int64
}

type RuntimeConfig struct {
	LockTimeout              time.Duration
	LockRetry                time.Duration
	LockMaxRetry             int
	InboxSize                int
	TranscriptRotateMaxBytes int64
}

func NewStore(workspaceID string, workspaceRootPath string, runtimeCfg RuntimeConfig) (*Store, error) {
	basePath, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return nil, err
	}

	// Init Directories
	dirs := []string{
		filepath.Join(basePath, "conversations"),
		filepath.Join(basePath, "kv"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", d, err)
		}
	}

	if runtimeCfg.LockTimeout <= 0 {
		lockTimeout, err := config.DurationOrDefault("", config.DefaultStoreLockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock timeout: %w", err)
		}
		runtimeCfg.LockTimeout = lockTimeout
	}
	if runtimeCfg.LockRetry <= 0 {
		lockRetry, err := config.DurationOrDefault("", config.DefaultStoreLockRetry)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock retry: %w", err)
		}
		runtimeCfg.LockRetry = lockRetry
	}
	if runtimeCfg.LockMaxRetry <= 0 {
		runtimeCfg.LockMaxRetry = config.DefaultStoreLockMaxRetry
	}
	if runtimeCfg.InboxSize <= 0 {
		runtimeCfg.InboxSize = config.DefaultStoreInboxSize
	}
	if runtimeCfg.TranscriptRotateMaxBytes <= 0 {
		runtimeCfg.TranscriptRotateMaxBytes = config.DefaultStoreTranscriptRotateMaxBytes
	}

	// File Lock (Single Instance per Workspace)
	fileLock, err := NewFileLock(workspaceID, basePath, &FileLockConfig{
		LockTimeout:  runtimeCfg.LockTimeout,
		LockRetry:    runtimeCfg.LockRetry,
		LockMaxRetry: runtimeCfg.LockMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Decision KV
	kvPath := filepath.Join(basePath, "kv", "decisions.json")
	kv, err := NewKV(kvPath)
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to load decision kv: %w", err)
	}

	// Delivery dedupe index
	dedupePath := filepath.Join(basePath, "kv", "deliveries.json")
	dedupe, err := NewDedupeIndex(dedupePath)
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to load dedupe index: %w", err)
	}

	s := &Store{
		workspaceID:              workspaceID,
		basePath:                 basePath,
		inbox:                    make(chan Request, runtimeCfg.InboxSize),
		kv:                       kv,
		dedupe:                   dedupe,
		fileLock:                 fileLock,
		quit:                     make(chan struct{}),
		index:                    &ConversationIndex{Conversations: make(map[string]ConversationMeta)},
		personas:                 &PersonaFile{Personas: make(map[string]Persona)},
		channels:                 &ChannelFile{Channels: make(map[string]ChannelBinding)},
		transcriptRotateMaxBytes: runtimeCfg.TranscriptRotateMaxBytes,
	}

	s.loadJSON(filepath.Join(basePath, "conversations", "index.json"), s.index, "conversation index")
	s.loadJSON(filepath.Join(basePath, "personas.json"), s.personas, "persona file")
	s.loadJSON(filepath.Join(basePath, "channels.json"), s.channels, "channel file")
	if s.index.Conversations == nil {
		s.index.Conversations = make(map[string]ConversationMeta)
	}
	if s.personas.Personas == nil {
		s.personas.Personas = make(map[string]Persona)
	}
	if s.channels.Channels == nil {
		s.channels.Channels = make(map[string]ChannelBinding)
	}

	return s, nil
}

func (s *Store) loadJSON(path string, target interface{}, what string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, target); err != nil {
		slog.Warn("Failed to parse "+what+", starting fresh", "path", path, "error", err)
	}
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Store) loop() {
	slog.Info("HistoryStore started", "workspace", s.workspaceID)
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()

	// Initial prune of expired delivery keys.
	pruned := s.dedupe.Prune()
	if pruned > 0 {
		slog.Info("Pruned expired delivery keys", "count", pruned)
		if err := s.dedupe.Save(); err != nil {
			slog.Error("Failed to save pruned delivery keys", "error", err)
		}
	}

	for {
		select {
		case req := <-s.inbox:
			err := s.handle(req)
			if req.Result != nil {
				req.Result <- err
			}
		case <-s.quit:
			slog.Info("HistoryStore stopping")
			return
		}
	}
}

func (s *Store) handle(req Request) error {
	switch req.Op {
	case OpRecordMessage:
		p, ok := req.Payload.(RecordMessagePayload)
		if !ok {
			return fmt.Errorf("invalid payload for RecordMessage")
		}
		return s.recordMessage(p.Key, p.Entry)
	case OpReadRecent:
		p, ok := req.Payload.(ReadRecentPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ReadRecent")
		}
		entries, err := s.readRecent(p.Key, p.Limit)
		if req.Response != nil {
			req.Response <- entries
		}
		return err
	case OpMarkRecalled:
		p, ok := req.Payload.(MarkRecalledPayload)
		if !ok {
			return fmt.Errorf("invalid payload for MarkRecalled")
		}
		return s.markRecalled(p.Key, p.MessageID)
	case OpResetConversation:
		p, ok := req.Payload.(ResetConversationPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ResetConversation")
		}
		return s.resetConversation(p.Key)
	case OpGetConversation:
		p, ok := req.Payload.(GetConversationPayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetConversation")
		}
		if meta, ok := s.index.Conversations[p.Key]; ok {
			if req.Response != nil {
				req.Response <- &meta
			}
		} else if req.Response != nil {
			req.Response <- nil
		}
		return nil
	case OpEffectivePersona:
		p, ok := req.Payload.(EffectivePersonaPayload)
		if !ok {
			return fmt.Errorf("invalid payload for EffectivePersona")
		}
		if req.Response != nil {
			req.Response <- s.effectivePersona(p.Key)
		}
		return nil
	case OpGetPersona:
		p, ok := req.Payload.(GetPersonaPayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetPersona")
		}
		if persona, ok := s.personas.Personas[p.ID]; ok {
			if req.Response != nil {
				req.Response <- &persona
			}
		} else if req.Response != nil {
			req.Response <- nil
		}
		return nil
	case OpListPersonas:
		if req.Response != nil {
			req.Response <- s.listPersonas()
		}
		return nil
	case OpSavePersona:
		p, ok := req.Payload.(SavePersonaPayload)
		if !ok {
			return fmt.Errorf("invalid payload for SavePersona")
		}
		s.personas.Personas[p.Persona.ID] = p.Persona
		return s.savePersonas()
	case OpDeletePersona:
		p, ok := req.Payload.(DeletePersonaPayload)
		if !ok {
			return fmt.Errorf("invalid payload for DeletePersona")
		}
		delete(s.personas.Personas, p.ID)
		if s.personas.DefaultID == p.ID {
			s.personas.DefaultID = ""
		}
		return s.savePersonas()
	case OpSetDefaultPersona:
		p, ok := req.Payload.(SetDefaultPersonaPayload)
		if !ok {
			return fmt.Errorf("invalid payload for SetDefaultPersona")
		}
		if _, exists := s.personas.Personas[p.ID]; !exists {
			return fmt.Errorf("persona %s not found", p.ID)
		}
		s.personas.DefaultID = p.ID
		return s.savePersonas()
	case OpDefaultPersonaID:
		if req.Response != nil {
			req.Response <- s.personas.DefaultID
		}
		return nil
	case OpGetBinding:
		p, ok := req.Payload.(GetBindingPayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetBinding")
		}
		if binding, ok := s.channels.Channels[p.Key]; ok {
			if req.Response != nil {
				req.Response <- &binding
			}
		} else if req.Response != nil {
			req.Response <- nil
		}
		return nil
	case OpListBindings:
		if req.Response != nil {
			req.Response <- s.listBindings()
		}
		return nil
	case OpBindChannel:
		p, ok := req.Payload.(BindChannelPayload)
		if !ok {
			return fmt.Errorf("invalid payload for BindChannel")
		}
		return s.bindChannel(p.Key, p.PersonaID)
	case OpSaveKV:
		return s.kv.Save()
	case OpSaveDeliveries:
		return s.dedupe.Save()
	default:
		return fmt.Errorf("unknown operation: %d", req.Op)
	}
}

func (s *Store) transcriptPath(key string) string {
	return filepath.Join(s.basePath, "conversations", key+".jsonl")
}

func (s *Store) recordMessage(key string, e Entry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Role == "" {
		e.Role = RoleUser
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.appendTranscript(key, data); err != nil {
		return err
	}

	meta, exists := s.index.Conversations[key]
	if !exists {
		meta = ConversationMeta{Key: key, CreatedAt: e.Timestamp}
		if kind, platformID, ok := message.SplitKey(key); ok {
			meta.Kind = string(kind)
			meta.PlatformID = platformID
		}
	}
	meta.UpdatedAt = e.Timestamp
	meta.MessageCount++
	s.index.Conversations[key] = meta
	return s.saveIndex()
}

// readRecent returns the newest entries first, excluding recalled ones.
func (s *Store) readRecent(key string, limit int) ([]Entry, error) {
	data, err := os.ReadFile(s.transcriptPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	entries := make([]Entry, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		if e.Recalled {
			continue
		}
		entries = append(entries, e)
	}
	if skipped > 0 {
		slog.Warn("Skipped malformed transcript lines", "conversation", key, "count", skipped)
	}

	// Reverse to newest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) markRecalled(key, messageID string) error {
	path := s.transcriptPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("conversation %s has no transcript", key)
		}
		return err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	found := false
	var buf bytes.Buffer
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// Keep unparseable lines untouched.
			buf.WriteString(line)
			buf.WriteString("\n")
			continue
		}
		if e.ID == messageID {
			e.Recalled = true
			found = true
			updated, err := json.Marshal(e)
			if err != nil {
				return err
			}
			buf.Write(updated)
			buf.WriteString("\n")
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}

	if !found {
		return fmt.Errorf("message %s not found in conversation %s", messageID, key)
	}
	return atomic.WriteFile(path, bytes.NewReader(buf.Bytes()))
}

func (s *Store) resetConversation(key string) error {
	if err := os.Remove(s.transcriptPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(s.index.Conversations, key)
	return s.saveIndex()
}

// effectivePersona resolves the persona for a conversation: channel binding
// first, then the default persona, then none.
func (s *Store) effectivePersona(key string) *Persona {
	if binding, ok := s.channels.Channels[key]; ok && binding.PersonaID != "" {
		if persona, ok := s.personas.Personas[binding.PersonaID]; ok {
			return &persona
		}
		slog.Warn("Channel bound to unknown persona", "conversation", key, "persona", binding.PersonaID)
	}
	if s.personas.DefaultID != "" {
		if persona, ok := s.personas.Personas[s.personas.DefaultID]; ok {
			return &persona
		}
		slog.Warn("Default persona missing", "persona", s.personas.DefaultID)
	}
	return nil
}

func (s *Store) listPersonas() []Persona {
	out := make([]Persona, 0, len(s.personas.Personas))
	for _, p := range s.personas.Personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) listBindings() []ChannelBinding {
	out := make([]ChannelBinding, 0, len(s.channels.Channels))
	for _, b := range s.channels.Channels {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationKey < out[j].ConversationKey })
	return out
}

func (s *Store) bindChannel(key, personaID string) error {
	if personaID == "" {
		delete(s.channels.Channels, key)
		return s.saveChannels()
	}
	if _, exists := s.personas.Personas[personaID]; !exists {
		return fmt.Errorf("persona %s not found", personaID)
	}
	s.channels.Channels[key] = ChannelBinding{
		ConversationKey: key,
		PersonaID:       personaID,
		UpdatedAt:       time.Now(),
	}
	return s.saveChannels()
}

func (s *Store) saveIndex() error {
	path := filepath.Join(s.basePath, "conversations", "index.json")
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *Store) savePersonas() error {
	path := filepath.Join(s.basePath, "personas.json")
	data, err := json.MarshalIndent(s.personas, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *Store) saveChannels() error {
	path := filepath.Join(s.basePath, "channels.json")
	data, err := json.MarshalIndent(s.channels, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *Store) appendTranscript(key string, data []byte) error {
	path := s.transcriptPath(key)

	if err := s.checkAndRotate(key, path); err != nil {
		slog.Warn("Failed to rotate transcript", "conversation", key, "error", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	return f.Sync()
}

func (s *Store) checkAndRotate(key, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.Size() < s.transcriptRotateMaxBytes {
		return nil
	}

	slog.Info("Rotating transcript", "conversation", key, "size", info.Size())

	timestamp := time.Now().Format("20060102150405")
	backupPath := fmt.Sprintf("%s.%s.bak", path, timestamp)

	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create new transcript: %w", err)
	}
	f.Close()

	return nil
}

// Public API for other components

func (s *Store) RecordMessage(key string, e Entry) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpRecordMessage,
		Payload: RecordMessagePayload{Key: key, Entry: e},
		Result:  res,
	}
	return <-res
}

// RecentMessages returns up to limit entries, newest first, with recalled
// messages filtered out.
func (s *Store) RecentMessages(key string, limit int) ([]Entry, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpReadRecent,
		Payload:  ReadRecentPayload{Key: key, Limit: limit},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]Entry), nil
}

func (s *Store) MarkRecalled(key, messageID string) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpMarkRecalled,
		Payload: MarkRecalledPayload{Key: key, MessageID: messageID},
		Result:  res,
	}
	return <-res
}

func (s *Store) ResetConversation(key string) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpResetConversation,
		Payload: ResetConversationPayload{Key: key},
		Result:  res,
	}
	return <-res
}

func (s *Store) GetConversation(key string) (*ConversationMeta, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpGetConversation,
		Payload:  GetConversationPayload{Key: key},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil // Not found
	}
	return val.(*ConversationMeta), nil
}

// ListConversations scans the conversations directory rather than the index
// so manually deleted transcripts drop out naturally.
func (s *Store) ListConversations() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "conversations"))
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
			keys = append(keys, strings.TrimSuffix(entry.Name(), ".jsonl"))
		}
	}
	return keys, nil
}

// EffectivePersona resolves the persona for a conversation. A nil result
// with nil error means no persona applies.
func (s *Store) EffectivePersona(key string) (*Persona, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpEffectivePersona,
		Payload:  EffectivePersonaPayload{Key: key},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil
	}
	return val.(*Persona), nil
}

func (s *Store) GetPersona(id string) (*Persona, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpGetPersona,
		Payload:  GetPersonaPayload{ID: id},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil
	}
	return val.(*Persona), nil
}

func (s *Store) ListPersonas() ([]Persona, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpListPersonas,
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]Persona), nil
}

func (s *Store) SavePersona(p Persona) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpSavePersona,
		Payload: SavePersonaPayload{Persona: p},
		Result:  res,
	}
	return <-res
}

func (s *Store) DeletePersona(id string) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpDeletePersona,
		Payload: DeletePersonaPayload{ID: id},
		Result:  res,
	}
	return <-res
}

func (s *Store) SetDefaultPersona(id string) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpSetDefaultPersona,
		Payload: SetDefaultPersonaPayload{ID: id},
		Result:  res,
	}
	return <-res
}

// DefaultPersonaID returns the configured default persona id, empty when
// none is set.
func (s *Store) DefaultPersonaID() (string, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpDefaultPersonaID,
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return "", err
	}
	val := <-resp
	return val.(string), nil
}

func (s *Store) BindChannel(key, personaID string) error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:      OpBindChannel,
		Payload: BindChannelPayload{Key: key, PersonaID: personaID},
		Result:  res,
	}
	return <-res
}

func (s *Store) GetChannelBinding(key string) (*ChannelBinding, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpGetBinding,
		Payload:  GetBindingPayload{Key: key},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil
	}
	return val.(*ChannelBinding), nil
}

func (s *Store) ListChannelBindings() ([]ChannelBinding, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	s.inbox <- Request{
		Op:       OpListBindings,
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]ChannelBinding), nil
}

// KVGet reads a decision record. Safe to call concurrently because the kv
// guards itself with a mutex; only persistence goes through the worker.
func (s *Store) KVGet(key string) (string, bool) {
	return s.kv.Get(key)
}

// KVSet writes a decision record and blocks until it is persisted, so
// callers can observe write failures.
func (s *Store) KVSet(key, value string) error {
	s.kv.Set(key, value)
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:     OpSaveKV,
		Result: res,
	}
	return <-res
}

func (s *Store) KVDelete(key string) error {
	s.kv.Delete(key)
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:     OpSaveKV,
		Result: res,
	}
	return <-res
}

// CheckAndMarkDelivery reports whether a platform delivery key was already
// handled and marks it when it was not. Safe to call concurrently because
// the dedupe index guards itself with a mutex; persistence is queued through
// the worker.
func (s *Store) CheckAndMarkDelivery(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		d, err := config.DurationOrDefault("", config.DefaultStoreDedupeTTL)
		if err == nil {
			ttl = d
		}
	}
	seen := s.dedupe.CheckAndMark(key, ttl)
	if !seen {
		s.inbox <- Request{Op: OpSaveDeliveries}
	}
	return seen
}

// SaveDeliveriesSync blocks until the dedupe index is persisted.
func (s *Store) SaveDeliveriesSync() error {
	res := make(chan error, 1)
	s.inbox <- Request{
		Op:     OpSaveDeliveries,
		Result: res,
	}
	return <-res
}

func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) Stop() {
	slog.Info("HistoryStore Stop called", "workspace", s.workspaceID, "lock_held", s.fileLock.IsLocked())

	close(s.quit)
	s.wg.Wait()

	if s.fileLock.IsLocked() {
		s.fileLock.Unlock()
	}
}

func (s *Store) IsLockHeld() bool {
	return s.fileLock.IsLocked()
}

func (s *Store) IsRunning() bool {
	return s.fileLock.IsLocked() && s.running.Load()
}
