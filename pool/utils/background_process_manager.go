package utils

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// BackgroundProcessManager runs the server's long-lived jobs (HTTP
// listener, archive scheduler) under one cancellable context.
type BackgroundProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	processes map[string]*process
	failed    chan error
	mu        sync.Mutex
}

type process struct {
	cancel context.CancelFunc
}

func NewBackgroundProcessManager(parent context.Context) *BackgroundProcessManager {
	ctx, cancel := context.WithCancel(parent)
	return &BackgroundProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*process),
		failed:    make(chan error, 1),
	}
}

// StartProcess runs fn in its own goroutine. A non-nil error other than
// context cancellation is reported on Failed; a panic is recovered and
// reported the same way.
func (bpm *BackgroundProcessManager) StartProcess(name string, fn func(ctx context.Context) error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if old, exists := bpm.processes[name]; exists {
		slog.Warn("Process already running, replacing it",
			slog.String("type", "job"),
			slog.String("process", name))
		old.cancel()
	}

	ctx, cancel := context.WithCancel(bpm.ctx)
	p := &process{cancel: cancel}
	bpm.processes[name] = p

	bpm.wg.Add(1)
	go func() {
		defer bpm.wg.Done()
		defer bpm.remove(name, p)

		err := bpm.run(ctx, name, fn)
		if err != nil && ctx.Err() == nil {
			slog.Error("Background process failed",
				slog.String("type", "job"),
				slog.String("process", name),
				slog.Any("error", err))
			select {
			case bpm.failed <- fmt.Errorf("%s: %w", name, err):
			default:
			}
			return
		}

		slog.Info("Background process ended",
			slog.String("type", "job"),
			slog.String("process", name))
	}()
}

func (bpm *BackgroundProcessManager) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.Info("Starting background process",
		slog.String("type", "job"),
		slog.String("process", name))
	return fn(ctx)
}

func (bpm *BackgroundProcessManager) remove(name string, p *process) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	p.cancel()
	if bpm.processes[name] == p {
		delete(bpm.processes, name)
	}
}

// Failed delivers the first process failure.
func (bpm *BackgroundProcessManager) Failed() <-chan error {
	return bpm.failed
}

func (bpm *BackgroundProcessManager) StopProcess(name string) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if p, exists := bpm.processes[name]; exists {
		p.cancel()
		slog.Info("Stopped background process",
			slog.String("type", "job"),
			slog.String("process", name))
	}
}

// Shutdown cancels every process and waits up to timeout for them to return.
func (bpm *BackgroundProcessManager) Shutdown(timeout time.Duration) error {
	slog.Info("Shutting down background processes",
		slog.String("type", "job"),
		slog.Int("process_count", len(bpm.Processes())))

	bpm.cancel()

	done := make(chan struct{})
	go func() {
		bpm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background processes stopped", slog.String("type", "job"))
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "job"),
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// Processes returns the names of running processes, sorted.
func (bpm *BackgroundProcessManager) Processes() []string {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	names := make([]string, 0, len(bpm.processes))
	for name := range bpm.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (bpm *BackgroundProcessManager) Context() context.Context {
	return bpm.ctx
}
