package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeAndKindOf(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  string
		kind  ErrorKind
		retry bool
	}{
		{"nil", nil, "", KindInternal, false},
		{"decode", NewInputError(CodeDecodeError, "bad image", nil), CodeDecodeError, KindInput, false},
		{"engine", NewEngineError("tesseract exited 1", nil), CodeEngineError, KindEngine, true},
		{"wrapped engine", WrapError(NewEngineError("down", nil), "recognize"), CodeEngineError, KindEngine, true},
		{"timeout", NewTimeoutError("item budget", context.DeadlineExceeded), CodeTimeout, KindTimeout, false},
		{"no text", NewAppError(CodeNoTextDetected, "blank", nil), CodeNoTextDetected, KindNoText, false},
		{"raw deadline", fmt.Errorf("ocr: %w", context.DeadlineExceeded), CodeTimeout, KindTimeout, false},
		{"raw cancel", context.Canceled, CodeCancelled, KindInternal, false},
		{"plain", errors.New("boom"), CodeInternal, KindInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			if tt.err != nil {
				assert.Equal(t, tt.kind, KindOf(tt.err))
			}
			assert.Equal(t, tt.retry, IsRetryable(tt.err))
		})
	}
}

func TestInputErrorDefaultsCause(t *testing.T) {
	err := NewInputError(CodeMalformedInput, "empty", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "malformed_input: empty: invalid input", err.Error())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{NewInputError(CodeMalformedBatch, "no items", nil), codes.InvalidArgument},
		{NewEngineError("down", nil), codes.Unavailable},
		{NewTimeoutError("slow", nil), codes.DeadlineExceeded},
		{NewAppError(CodeNoTextDetected, "blank", nil), codes.FailedPrecondition},
		{fmt.Errorf("batch x: %w", ErrNotFound), codes.NotFound},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.NotFound, "already a status"), codes.NotFound},
	}
	for _, tt := range tests {
		st, ok := status.FromError(ToStatus(tt.err))
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code(), tt.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("batch_id", "", Required).
		Field("item_id", "abcdef", MaxLength(3)).
		Check(false, "items", "must not be empty")

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	err := v.Err(CodeMalformedBatch)
	assert.Equal(t, CodeMalformedBatch, CodeOf(err))
	assert.Contains(t, err.Error(), "batch_id is required; item_id must be at most 3 characters; items must not be empty")

	assert.NoError(t, NewValidator().Field("x", "y", Required).Err(CodeMalformedBatch))
}

func TestContextFields(t *testing.T) {
	ctx := WithItemID(WithBatchID(WithRequestID(context.Background(), "req-1"), "b-1"), "i-1")
	fields := ContextFields(ctx)
	assert.Equal(t, []zap.Field{
		zap.String("request_id", "req-1"),
		zap.String("batch_id", "b-1"),
		zap.String("item_id", "i-1"),
	}, fields)
	assert.Empty(t, ContextFields(context.Background()))
}
