package jobserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// StepFunc performs step i of a task, mutating its progress and titles.
type StepFunc func(ctx context.Context, t *Task, i int) error

// Runner executes simulated job tasks in the background and records their
// state in the store after every step.
type Runner struct {
	store    Store
	duration time.Duration
	steps    int
	step     StepFunc
	onState  func(job core.JobName, state TaskState)

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

type RunnerOption func(*Runner)

// WithStep replaces the default title generator.
func WithStep(fn StepFunc) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.step = fn
		}
	}
}

// WithStateHook is called whenever a task reaches a final state.
func WithStateHook(fn func(job core.JobName, state TaskState)) RunnerOption {
	return func(r *Runner) {
		r.onState = fn
	}
}

func NewRunner(ctx context.Context, store Store, duration time.Duration, steps int, opts ...RunnerOption) *Runner {
	if steps < 1 {
		steps = 1
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Runner{
		store:    store,
		duration: duration,
		steps:    steps,
		step:     generateTitles,
		ctx:      runCtx,
		cancel:   cancel,
		active:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch stores a pending task and runs it in the background.
func (r *Runner) Launch(ctx context.Context, job core.JobName, module string) (*Task, error) {
	t := &Task{
		ID:        uuid.NewString(),
		Job:       job,
		Module:    module,
		State:     TaskPending,
		Progress:  Progress{AllMax: r.steps, List: core.ListWatch},
		Titles:    make(map[core.WatchList][]string),
		StartedAt: time.Now(),
	}
	if err := r.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}
	taskCtx, cancel := context.WithCancel(r.ctx)
	r.mu.Lock()
	r.active[t.ID] = cancel
	r.mu.Unlock()
	running := t.Clone()
	r.wg.Go(func() {
		r.run(taskCtx, running)
	})
	return t, nil
}

// Revoke cancels a running task. It reports whether the task was running.
func (r *Runner) Revoke(id string) bool {
	r.mu.Lock()
	cancel, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown revokes every task and waits for them to record their state.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, t *Task) {
	log := logger.FromContext(r.ctx).With("job", t.Job, "task", t.ID)
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.active[t.ID]; ok {
			cancel()
			delete(r.active, t.ID)
		}
		r.mu.Unlock()
	}()
	saveCtx := context.WithoutCancel(ctx)
	interval := r.duration / time.Duration(r.steps)
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	for i := range r.steps {
		select {
		case <-ctx.Done():
			r.finish(saveCtx, t, TaskRevoked, nil)
			log.Info("task revoked", "step", i)
			return
		case <-ticker.C:
		}
		if err := r.step(ctx, t, i); err != nil {
			if errors.Is(err, context.Canceled) {
				r.finish(saveCtx, t, TaskRevoked, nil)
				return
			}
			r.finish(saveCtx, t, TaskFailure, err)
			log.Warn("task failed", "step", i, "error", err)
			return
		}
		t.Progress.AllNow = i + 1
		if err := r.store.SaveTask(saveCtx, t); err != nil {
			log.Error("failed to save task progress", "error", err)
		}
	}
	r.finish(saveCtx, t, TaskSuccess, nil)
	log.Info("task finished", "titles", countTitles(t))
}

func (r *Runner) finish(ctx context.Context, t *Task, state TaskState, cause error) {
	now := time.Now()
	t.State = state
	t.EndedAt = &now
	if cause != nil {
		t.Error = cause.Error()
	}
	if err := r.store.SaveTask(ctx, t); err != nil {
		logger.FromContext(ctx).Error("failed to save task state", "task", t.ID, "error", err)
	}
	if r.onState != nil {
		r.onState(t.Job, state)
	}
}

// generateTitles walks the watch lists and adds one title per step.
func generateTitles(_ context.Context, t *Task, i int) error {
	lists := core.WatchLists()
	list := lists[i%len(lists)]
	if t.Titles == nil {
		t.Titles = make(map[core.WatchList][]string)
	}
	t.Titles[list] = append(t.Titles[list], fmt.Sprintf("%s title %d", t.Module, i+1))
	t.Progress.List = list
	t.Progress.CurrentNow = len(t.Titles[list])
	t.Progress.CurrentMax = (t.Progress.AllMax + len(lists) - 1 - i%len(lists)) / len(lists)
	return nil
}

func countTitles(t *Task) int {
	n := 0
	for _, titles := range t.Titles {
		n += len(titles)
	}
	return n
}
