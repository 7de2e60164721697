package llm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(threshold int, window time.Duration) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker(threshold, window)
	now := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func failing() error { return fmt.Errorf("upstream 503") }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		err := b.Call(failing)
		require.Error(t, err)
		assert.False(t, b.Open(), "breaker must stay closed below threshold")
	}

	require.Error(t, b.Call(failing))
	assert.True(t, b.Open())

	// Open circuit fails fast without invoking the upstream.
	called := false
	err := b.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenAfterWindow(t *testing.T) {
	b, now := testBreaker(2, time.Minute)

	require.Error(t, b.Call(failing))
	require.Error(t, b.Call(failing))
	require.True(t, b.Open())

	*now = now.Add(61 * time.Second)

	// Trial call goes through and closes the circuit on success.
	err := b.Call(func() error { return nil })
	assert.NoError(t, err)
	assert.False(t, b.Open())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	require.Error(t, b.Call(failing))
	require.Error(t, b.Call(failing))
	require.NoError(t, b.Call(func() error { return nil }))

	// Two more failures stay under the threshold after the reset.
	require.Error(t, b.Call(failing))
	require.Error(t, b.Call(failing))
	assert.False(t, b.Open())
}

func TestBreaker_WindowExpiresOldFailures(t *testing.T) {
	b, now := testBreaker(3, time.Minute)

	require.Error(t, b.Call(failing))
	require.Error(t, b.Call(failing))

	*now = now.Add(2 * time.Minute)

	// Old failures aged out; this one counts alone.
	require.Error(t, b.Call(failing))
	assert.False(t, b.Open())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("status 429: rate limit exceeded")))
	assert.True(t, IsRetryable(fmt.Errorf("upstream 503 unavailable")))
	assert.True(t, IsRetryable(fmt.Errorf("context deadline exceeded")))
	assert.False(t, IsRetryable(fmt.Errorf("invalid api key")))
	assert.False(t, IsRetryable(nil))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, int64(1), EstimateTokens(""))
	assert.Equal(t, int64(26), EstimateTokens(string(make([]byte, 100))))
}
