package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_PartitionsInInputOrder(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5, 6}
	successes, failures := Settle(context.Background(), items, 0, func(_ context.Context, n int) (int, error) {
		// Finish in reverse order to make sure ordering is not completion order.
		time.Sleep(time.Duration(10-n) * time.Millisecond)
		if n%3 == 0 {
			return 0, errors.New("divisible by three")
		}
		return n * n, nil
	})

	require.Len(t, successes, 4)
	require.Len(t, failures, 2)

	assert.Equal(t, []int{0, 1, 3, 4}, indexes(successes))
	assert.Equal(t, 16, successes[2].Value)
	assert.Equal(t, 3, failures[0].Item)
	assert.Equal(t, 5, failures[1].Index)
}

func TestSettle_RespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	Settle(context.Background(), items, 3, func(_ context.Context, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestSettle_CancelledContextFailsRemaining(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	successes, failures := Settle(ctx, []string{"a", "b"}, 1, func(_ context.Context, s string) (string, error) {
		calls.Add(1)
		return s, nil
	})

	assert.Empty(t, successes)
	assert.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0].Err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestSettle_Empty(t *testing.T) {
	t.Parallel()

	successes, failures := Settle(context.Background(), nil, 4, func(_ context.Context, s string) (string, error) {
		return s, nil
	})
	assert.Empty(t, successes)
	assert.Empty(t, failures)
}

func indexes[T, R any](s []Success[T, R]) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = v.Index
	}
	return out
}
