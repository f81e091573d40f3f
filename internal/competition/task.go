package competition

import "context"

// Task is one in-flight unit of phase work.
//
// The Runtime polls a task at most once per scheduling step. Poll must not
// block; it reports (true, nil) on clean completion, (true, err) on failure
// (which is fatal to the whole Runtime), or (false, nil) while still
// pending.
//
// Cancel tears the task down. It must not return until the task will never
// touch the shared state again; the Runtime relies on this before handing
// the shared state to the next task. For purely cooperative tasks Cancel is
// a no-op. Cancel is never called after Poll has reported completion.
type Task interface {
	Poll(ctx context.Context) (done bool, err error)
	Cancel()
}

// TaskFunc adapts a poll function into a cooperative Task with a no-op
// Cancel.
type TaskFunc func(ctx context.Context) (bool, error)

func (f TaskFunc) Poll(ctx context.Context) (bool, error) { return f(ctx) }

func (TaskFunc) Cancel() {}

// Done returns a task that completes immediately on its first poll. It is
// the default for unset builder slots.
func Done() Task {
	return TaskFunc(func(context.Context) (bool, error) { return true, nil })
}

// Fail returns a task that fails immediately with err.
func Fail(err error) Task {
	return TaskFunc(func(context.Context) (bool, error) { return true, err })
}

// Go runs fn on its own goroutine and exposes it as a Task.
//
// fn must honor ctx: Cancel cancels the context and waits for fn to return,
// which is what makes tearing down a mode task on a phase change safe.
// Whatever fn captured (typically the shared state handed to the factory)
// is guaranteed untouched after Cancel returns.
func Go(fn func(ctx context.Context) error) Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &goTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		t.err = fn(ctx)
	}()
	return t
}

type goTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written before done is closed
}

func (t *goTask) Poll(context.Context) (bool, error) {
	select {
	case <-t.done:
		return true, t.err
	default:
		return false, nil
	}
}

func (t *goTask) Cancel() {
	t.cancel()
	<-t.done
}
