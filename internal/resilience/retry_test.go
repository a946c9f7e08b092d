package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDoVal_RetriesEngineErrors(t *testing.T) {
	calls := 0
	v, n, err := DoVal(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", common.NewEngineError("flaky", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, n)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	n, err := Do(context.Background(), p, func(context.Context) error {
		return common.NewEngineError("down", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, common.CodeEngineError, common.CodeOf(err))
}

func TestDo_NonRetryableSurfacesImmediately(t *testing.T) {
	for _, e := range []error{
		common.NewInputError(common.CodeDecodeError, "bad", nil),
		common.NewTimeoutError("slow", nil),
		common.NewAppError(common.CodeNoTextDetected, "blank", nil),
		errors.New("plain"),
	} {
		n, err := Do(context.Background(), fastPolicy(5), func(context.Context) error { return e })
		assert.Equal(t, 1, n, e.Error())
		assert.ErrorIs(t, err, e)
	}
}

func TestDo_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	p.OnRetry = func(int, error) { cancel() }

	start := time.Now()
	n, err := Do(ctx, p, func(context.Context) error { return common.NewEngineError("down", nil) })
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_CappedAndJittered(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}.withDefaults()
	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.backoff(5))

	p.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
