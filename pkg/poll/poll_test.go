package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ImmediateConvergence(t *testing.T) {
	probes := 0
	err := Until(context.Background(), Config{Interval: time.Hour, MaxRetries: 3}, func(ctx context.Context) (bool, string, error) {
		probes++
		return true, "ready", nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, probes, "should not sleep when the first probe converges")
}

func TestUntil_ConvergesAfterRetries(t *testing.T) {
	probes := 0
	err := Until(context.Background(), Config{Interval: time.Millisecond, MaxRetries: 10}, func(ctx context.Context) (bool, string, error) {
		probes++
		return probes >= 4, "", nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, probes)
}

func TestUntil_Timeout(t *testing.T) {
	err := Until(context.Background(), Config{Interval: time.Millisecond, MaxRetries: 3}, func(ctx context.Context) (bool, string, error) {
		return false, "2 copies mounted", nil
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 4, timeout.Attempts, "initial probe plus three retries")
	assert.Equal(t, "2 copies mounted", timeout.LastObserved)
}

func TestUntil_ProbeErrorAborts(t *testing.T) {
	boom := errors.New("store exploded")
	probes := 0
	err := Until(context.Background(), Config{Interval: time.Millisecond, MaxRetries: 10}, func(ctx context.Context) (bool, string, error) {
		probes++
		return false, "", boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, probes, "probe errors must not be retried")
}

func TestUntil_CancellationInterruptsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Until(ctx, Config{Interval: time.Hour, MaxRetries: 5}, func(ctx context.Context) (bool, string, error) {
			return false, "", nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not interrupt the inter-probe sleep")
	}
}
