package logger

import "context"

type contextKey string

const TraceIDKey contextKey = "trace_id"
const ConversationKey contextKey = "conversation"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithConversation(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ConversationKey, key)
}

func GetConversation(ctx context.Context) string {
	if key, ok := ctx.Value(ConversationKey).(string); ok {
		return key
	}
	return ""
}
