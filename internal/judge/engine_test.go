package judge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/miuzhaii/replygate/internal/cache"
	"github.com/miuzhaii/replygate/internal/history"
	"github.com/miuzhaii/replygate/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRouter is a mock of the Router interface
type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	args := m.Called(ctx, model, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.CompletionResponse), args.Error(1)
}

type fakeKV struct {
	entries map[string]string
	setErr  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: map[string]string{}}
}

func (f *fakeKV) KVGet(key string) (string, bool) {
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeKV) KVSet(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func testOptions() Options {
	return Options{
		ModelGroup:          "judge-default",
		SystemPrompt:        "You are a reply classifier.",
		ContextMessageCount: 5,
		UsePersona:          true,
		Temperature:         0.3,
		MaxTokens:           32000,
		RequestTimeout:      5 * time.Second,
	}
}

func TestShouldReplyUsesModelVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"model says yes", `{"should_reply": true}`, true},
		{"model says no", `{"should_reply": false}`, false},
		{"unparseable content defaults to yes", "can't decide, sorry", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRouter := new(MockRouter)
			mockRouter.On("Route", mock.Anything, "judge-default", mock.Anything).
				Return(&contract.CompletionResponse{Content: tt.content}, nil).Once()

			engine := NewEngine(cache.New(newFakeKV(), 5*time.Minute), nil, mockRouter, testOptions())

			got := engine.ShouldReply(context.Background(), "should I answer this?", "group_1")

			assert.Equal(t, tt.want, got)
			mockRouter.AssertExpectations(t)
		})
	}
}

func TestShouldReplyCacheHitSkipsModel(t *testing.T) {
	mockRouter := new(MockRouter)
	kv := newFakeKV()
	decisionCache := cache.New(kv, 5*time.Minute)

	rec, err := json.Marshal(map[string]any{"v": false, "ts": time.Now().Unix()})
	assert.NoError(t, err)
	kv.entries[cache.Fingerprint("seen before")] = string(rec)

	engine := NewEngine(decisionCache, nil, mockRouter, testOptions())

	got := engine.ShouldReply(context.Background(), "seen before", "group_1")

	assert.False(t, got)
	mockRouter.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything)
}

func TestShouldReplyFailOpenNotCached(t *testing.T) {
	mockRouter := new(MockRouter)
	mockRouter.On("Route", mock.Anything, "judge-default", mock.Anything).
		Return(nil, errors.New("provider down")).Twice()

	kv := newFakeKV()
	engine := NewEngine(cache.New(kv, 5*time.Minute), nil, mockRouter, testOptions())

	assert.True(t, engine.ShouldReply(context.Background(), "hello?", "group_1"))
	assert.Empty(t, kv.entries, "transport failures must not be cached")

	// The next identical message goes back to the model.
	assert.True(t, engine.ShouldReply(context.Background(), "hello?", "group_1"))
	mockRouter.AssertExpectations(t)
}

func TestShouldReplyCachesVerdict(t *testing.T) {
	mockRouter := new(MockRouter)
	mockRouter.On("Route", mock.Anything, "judge-default", mock.Anything).
		Return(&contract.CompletionResponse{Content: `{"should_reply": false}`}, nil).Once()

	engine := NewEngine(cache.New(newFakeKV(), 5*time.Minute), nil, mockRouter, testOptions())

	assert.False(t, engine.ShouldReply(context.Background(), "repeat me", "group_1"))
	assert.False(t, engine.ShouldReply(context.Background(), "repeat me", "group_1"))
	mockRouter.AssertExpectations(t)
}

func TestShouldReplyCacheWriteFailureTolerated(t *testing.T) {
	mockRouter := new(MockRouter)
	mockRouter.On("Route", mock.Anything, "judge-default", mock.Anything).
		Return(&contract.CompletionResponse{Content: `{"should_reply": true}`}, nil).Once()

	kv := newFakeKV()
	kv.setErr = errors.New("disk full")
	engine := NewEngine(cache.New(kv, 5*time.Minute), nil, mockRouter, testOptions())

	assert.True(t, engine.ShouldReply(context.Background(), "hello", "group_1"))
	mockRouter.AssertExpectations(t)
}

func TestShouldReplyEmptyTextSkipsModel(t *testing.T) {
	mockRouter := new(MockRouter)
	engine := NewEngine(cache.New(newFakeKV(), 5*time.Minute), nil, mockRouter, testOptions())

	assert.False(t, engine.ShouldReply(context.Background(), "   ", "group_1"))
	mockRouter.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything)
}

func TestShouldReplyIncludesContext(t *testing.T) {
	store := &fakeHistory{
		entries: []history.Entry{{SenderName: "alice", Content: "hi"}},
		persona: &history.Persona{ID: "p", Content: "A careful librarian."},
	}

	var captured contract.CompletionRequest
	mockRouter := new(MockRouter)
	mockRouter.On("Route", mock.Anything, "judge-default", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(contract.CompletionRequest)
		}).
		Return(&contract.CompletionResponse{Content: `{"should_reply": true}`}, nil).Once()

	engine := NewEngine(cache.New(newFakeKV(), 5*time.Minute), NewContextAssembler(store), mockRouter, testOptions())

	assert.True(t, engine.ShouldReply(context.Background(), "what do you think?", "group_1"))
	mockRouter.AssertExpectations(t)

	assert.Equal(t, "You are a reply classifier.", captured.System)
	assert.Equal(t, float32(0.3), captured.Temperature)
	assert.Equal(t, 32000, captured.MaxTokens)
	if assert.Len(t, captured.Messages, 1) {
		prompt := captured.Messages[0].Content
		assert.True(t, strings.Contains(prompt, "alice: hi"), "prompt should carry the transcript:\n%s", prompt)
		assert.True(t, strings.Contains(prompt, "A careful librarian."), "prompt should carry the persona:\n%s", prompt)
		assert.True(t, strings.Contains(prompt, "what do you think?"), "prompt should carry the subject:\n%s", prompt)
	}
}
