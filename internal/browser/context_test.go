// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "testKey"
	const value = "testValue"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, value)
		secondary := context.Background()

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		assert.Equal(t, value, combined.Value(key), "combined context should inherit values from the primary")
		assert.Nil(t, combined.Err(), "context should not be done yet")
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancelCombined := CombineContext(primary, context.Background())
		defer cancelCombined()

		cancelPrimary()

		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond, "combined context should cancel with the primary")
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancelCombined := CombineContext(context.Background(), secondary)
		defer cancelCombined()

		cancelSecondary()

		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond, "combined context should cancel with the secondary")
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("DeadlineFromPrimary", func(t *testing.T) {
		deadline := time.Now().Add(50 * time.Millisecond)
		primary, cancelPrimary := context.WithDeadline(context.Background(), deadline)
		defer cancelPrimary()

		combined, cancelCombined := CombineContext(primary, context.Background())
		defer cancelCombined()

		combinedDeadline, ok := combined.Deadline()
		require.True(t, ok, "combined context should carry the primary's deadline")
		assert.InDelta(t, deadline.UnixNano(), combinedDeadline.UnixNano(),
			float64(10*time.Millisecond.Nanoseconds()))
	})

	t.Run("DirectCancel", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	const key ctxKey = "detachKey"

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key, "kept"))
	detached := Detach(parent)

	cancel()

	assert.Nil(t, detached.Err(), "detached context must ignore parent cancellation")
	assert.Nil(t, detached.Done(), "detached context must not expose a done channel")
	assert.Equal(t, "kept", detached.Value(key), "detached context must keep parent values")

	_, ok := detached.Deadline()
	assert.False(t, ok, "detached context must drop the parent's deadline")
}
