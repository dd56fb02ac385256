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
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a cron", time.UTC, 0, func(context.Context) error { return nil }, nil)
	assert.Error(t, err)
}

func TestRunNowThenStop(t *testing.T) {
	var runs atomic.Int32
	s, err := New("0 3 * * 1", time.UTC, time.Second, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		runs.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	next := s.Next()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, true) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Monday, s.Next().Weekday())
	assert.True(t, next.IsZero() || next.Weekday() == time.Monday)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.Running())
	assert.EqualValues(t, 1, runs.Load())
}

func TestFailingJobIsLogged(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1h", time.UTC, time.Second, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, true) }()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRunReturnsPromptlyWhenCancelledMidJob(t *testing.T) {
	started := make(chan struct{})
	s, err := New("0 3 * * 1", time.UTC, time.Minute, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, true) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run never began")
	}
	assert.True(t, s.Running())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for the job after cancel")
	}
	assert.False(t, s.Running())
}
