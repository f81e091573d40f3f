package competition

import (
	"context"
	"time"
)

// Factory constructs the task for a phase entry.
//
// It receives exclusive access to the shared state; the Runtime guarantees
// the previous task has been cancelled and discarded before any factory is
// invoked. Factories must not stash the pointer anywhere that outlives the
// returned task.
type Factory[S any] func(shared *S) Task

// DefaultStepInterval paces Run when the builder didn't set one.
const DefaultStepInterval = 10 * time.Millisecond

// Runtime schedules one phase task at a time over shared state of type S.
//
// A Runtime is single-owner, single-goroutine state: drive it from exactly
// one place, either via Run or by calling Step yourself.
type Runtime[S any] struct {
	shared    S
	updates   *Updates
	phase     Phase
	task      Task
	factories [phaseCount]Factory[S]
	interval  time.Duration
	observer  func(from, to Phase, st Status)
	failed    error
}

// Phase returns the current lifecycle phase.
func (r *Runtime[S]) Phase() Phase { return r.phase }

// LastStatus returns the most recent status snapshot.
func (r *Runtime[S]) LastStatus() Status { return r.updates.Last() }

// Shared exposes the shared state. Only safe to touch while no task is
// running, e.g. after Run returned.
func (r *Runtime[S]) Shared() *S { return &r.shared }

// Step performs one scheduling step, in fixed order:
//
//  1. Poll the status stream; a new snapshot updates the phase.
//  2. Poll the running task once. A task error terminates the Runtime and
//     is returned verbatim. Clean completion clears the task and applies
//     the finish transition (the one-shot connected task falls through
//     into the current match mode).
//  3. If the phase changed, cancel and discard the old task, then invoke
//     the factory for the new phase with exclusive access to shared.
//
// When a status update and a task completion land in the same step, the
// status-driven transition wins: the finish transition only fires if step 1
// left the phase where it was. The completed task belonged to the outgoing
// phase, and letting its finish transition fire anyway could skip the
// one-shot connected task entirely.
//
// A nil return means "still pending"; Step never blocks.
func (r *Runtime[S]) Step(ctx context.Context) error {
	if r.failed != nil {
		return r.failed
	}

	old := r.phase

	if st, ok := r.updates.PollNext(); ok {
		r.setPhase(nextPhase(r.phase, st), st)
	}
	movedByStatus := r.phase != old

	if r.task != nil {
		done, err := r.task.Poll(ctx)
		if err != nil {
			// A single task failure is fatal to the whole run; no retries,
			// no per-phase recovery.
			r.task = nil
			r.failed = err
			return err
		}
		if done {
			r.task = nil
			if !movedByStatus {
				st := r.updates.Last()
				r.setPhase(finishPhase(r.phase, st), st)
			}
		}
	}

	if r.phase != old {
		// The old task is always fully torn down before the new factory
		// gets the shared state; this is what keeps at most one borrower
		// alive at a time.
		if r.task != nil {
			r.task.Cancel()
			r.task = nil
		}
		if mk := r.factories[r.phase]; mk != nil {
			r.task = mk(&r.shared)
		}
	}

	return nil
}

// Run drives Step on a ticker until a task fails or ctx is cancelled.
// Under normal competition operation it never returns.
func (r *Runtime[S]) Run(ctx context.Context) error {
	interval := r.interval
	if interval <= 0 {
		interval = DefaultStepInterval
	}

	defer func() {
		if r.task != nil {
			r.task.Cancel()
			r.task = nil
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Step(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Runtime[S]) setPhase(next Phase, st Status) {
	if next == r.phase {
		return
	}
	from := r.phase
	r.phase = next
	if r.observer != nil {
		r.observer(from, next, st)
	}
}
