package measure

import (
	"context"
	"testing"
	"time"

	"github.com/isoflux/isoflux/pkg/adc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_GracefulShutdown verifies the loop observes cancellation between
// full passes and terminates cleanly without an error.
func TestRun_GracefulShutdown(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ix.Run(ctx)
	}()

	// Let a few cycles complete, then request termination.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("acquisition loop did not stop after cancellation")
	}

	assert.Equal(t, StateStopping, ix.State())

	// A full pass ran before shutdown: the state vectors hold live data.
	snap := ix.Snapshot()
	assert.InDelta(t, 24.0, snap.Temperature[0], 0.01)
}

// TestRun_HardwareFailureIsFatal verifies a failed cycle terminates the
// loop with the hardware error instead of retrying.
func TestRun_HardwareFailureIsFatal(t *testing.T) {
	ix, mock := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	mock.FailWith(adc.ErrTimeout)

	err := ix.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, adc.ErrTimeout)
	assert.Equal(t, StateStopping, ix.State())
}

// TestRun_PublishesThrottledSnapshots verifies callbacks fire at roughly
// one second cadence, not per cycle.
func TestRun_PublishesThrottledSnapshots(t *testing.T) {
	ix, _ := benchInstrument(t, map[string]float64{
		"cold": 24.0, "hs_1": 26.0, "hs_2": 28.0,
	}, 0.5)

	snaps := make(chan Snapshot, 16)
	ix.OnUpdate(func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ix.Run(ctx)
	}()

	select {
	case snap := <-snaps:
		assert.Len(t, snap.Power, 3)
		assert.Equal(t, 0.0, snap.Power[0])
		assert.Greater(t, snap.Power[1], 0.0)
	case <-time.After(3 * time.Second):
		t.Fatal("no snapshot published")
	}

	cancel()
	require.NoError(t, <-done)

	// Thousands of mock cycles ran in over a second of wall time, yet only
	// about one snapshot per second may have been published.
	assert.LessOrEqual(t, len(snaps)+1, 4)
}
