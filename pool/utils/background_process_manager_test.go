package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundProcessManager_shutdownCancelsProcesses(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	started := make(chan struct{})
	bpm.StartProcess("scheduler", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	assert.Equal(t, []string{"scheduler"}, bpm.Processes())
	require.NoError(t, bpm.Shutdown(time.Second))
	assert.Empty(t, bpm.Processes())

	select {
	case err := <-bpm.Failed():
		t.Fatalf("cancellation reported as failure: %v", err)
	default:
	}
}

func TestBackgroundProcessManager_reportsFailure(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())
	listenErr := errors.New("address already in use")

	bpm.StartProcess("http", func(ctx context.Context) error {
		return listenErr
	})

	select {
	case err := <-bpm.Failed():
		assert.ErrorIs(t, err, listenErr)
		assert.Contains(t, err.Error(), "http")
	case <-time.After(time.Second):
		t.Fatal("failure not reported")
	}
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_recoversPanic(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	bpm.StartProcess("archive", func(ctx context.Context) error {
		panic("nil sink")
	})

	select {
	case err := <-bpm.Failed():
		assert.Contains(t, err.Error(), "panic: nil sink")
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_stopProcess(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	done := make(chan struct{})
	bpm.StartProcess("scheduler", func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	})

	bpm.StopProcess("scheduler")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process not stopped")
	}
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_shutdownTimeout(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	release := make(chan struct{})
	defer close(release)
	bpm.StartProcess("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	err := bpm.Shutdown(20 * time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
