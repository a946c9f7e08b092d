package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeyBatchID     contextKey = "batch_id"
	ContextKeyItemID      contextKey = "item_id"
	ContextKeyFingerprint contextKey = "fingerprint"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeyRequestID)
}

// WithBatchID adds a batch ID to the context
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, ContextKeyBatchID, batchID)
}

func BatchIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeyBatchID)
}

// WithItemID adds the caller-supplied item id of a batch entry.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ContextKeyItemID, itemID)
}

func ItemIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeyItemID)
}

// WithFingerprint attaches the content hash of the image being processed,
// so engines can key artifacts and fixtures on it.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, ContextKeyFingerprint, fp)
}

func FingerprintFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeyFingerprint)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
