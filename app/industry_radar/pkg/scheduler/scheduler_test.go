package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunOnce(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, time.Hour, time.Second)
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, int64(1), s.Runs())
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	s := New(func(ctx context.Context) error {
		panic("boom")
	}, time.Hour, time.Second)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateStopped, s.State())
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	}, 10*time.Millisecond, time.Millisecond)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StateStopped, s.State())
}

func TestRun_FailuresDoNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("first run exploded")
		case 2:
			return errors.New("second run failed")
		default:
			cancel()
			return nil
		}
	}, 5*time.Millisecond, time.Millisecond)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(3), s.Runs())
}

func TestRun_StopDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		close(finished)
		return nil
	}, time.Hour, 10*time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	<-finished
	require.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop within the poll bound")
	}
	assert.Equal(t, int32(1), calls.Load(), "no new run starts after stop")
	assert.Equal(t, StateStopped, s.State())
}

func TestRun_StopDoesNotInterruptInFlightRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	var calls atomic.Int32
	s := New(func(jobCtx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		sawCancel.Store(jobCtx.Err() != nil)
		return nil
	}, time.Hour, 10*time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	<-started
	assert.Equal(t, StateRunning, s.State())
	cancel()
	require.Eventually(t, func() bool { return s.State() == StateStopping }, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-errCh)
	assert.False(t, sawCancel.Load(), "in-flight run keeps a live context")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateStopped, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestRun_AlreadyCancelledStartsNoRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, time.Hour, time.Millisecond)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int64(0), s.Runs())
	assert.Equal(t, StateStopped, s.State())
}
