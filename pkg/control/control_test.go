package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSafePoint_ContinueByDefault(t *testing.T) {
	c := New()
	assert.Equal(t, Continue, c.CheckSafePoint(context.Background()))
}

func TestCheckSafePoint_SkipIsConsumedOnce(t *testing.T) {
	c := New()
	c.RequestSkip()
	assert.True(t, c.SkipRequested())

	assert.Equal(t, Skip, c.CheckSafePoint(context.Background()))
	assert.False(t, c.SkipRequested())
	assert.Equal(t, Continue, c.CheckSafePoint(context.Background()))
}

func TestCheckSafePoint_StopIsPermanent(t *testing.T) {
	c := New()
	c.RequestSkip()
	c.Stop()
	c.Stop()

	assert.Equal(t, Stop, c.CheckSafePoint(context.Background()))
	assert.Equal(t, Stop, c.CheckSafePoint(context.Background()))
	assert.True(t, c.IsStopped())

	select {
	case <-c.Stopped():
	default:
		t.Fatal("stopped channel not closed")
	}
}

func TestCheckSafePoint_BlocksWhilePaused(t *testing.T) {
	c := New()
	require.True(t, c.Pause())
	assert.False(t, c.Pause())

	decided := make(chan Decision, 1)
	go func() { decided <- c.CheckSafePoint(context.Background()) }()

	select {
	case d := <-decided:
		t.Fatalf("safe point returned %s while paused", d)
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, c.Resume())
	select {
	case d := <-decided:
		assert.Equal(t, Continue, d)
	case <-time.After(time.Second):
		t.Fatal("safe point did not resume")
	}
	assert.False(t, c.Resume())
}

func TestCheckSafePoint_StopReleasesPause(t *testing.T) {
	c := New()
	c.Pause()

	decided := make(chan Decision, 1)
	go func() { decided <- c.CheckSafePoint(context.Background()) }()
	c.Stop()

	select {
	case d := <-decided:
		assert.Equal(t, Stop, d)
	case <-time.After(time.Second):
		t.Fatal("stop did not release the paused engine")
	}
}

func TestCheckSafePoint_ContextCancelledWhilePaused(t *testing.T) {
	c := New()
	c.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Stop, c.CheckSafePoint(ctx))
}

func TestGate_LeavesSkipPending(t *testing.T) {
	c := New()
	c.RequestSkip()

	require.NoError(t, c.Gate(context.Background()))
	assert.True(t, c.SkipRequested())

	c.Stop()
	assert.ErrorIs(t, c.Gate(context.Background()), ErrStopped)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "unknown", Decision(9).String())
}
