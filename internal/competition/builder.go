package competition

import "time"

// Builder accumulates per-phase task factories for a Runtime.
//
// Each setter is independent and order-insensitive; unset slots default to
// a task that completes immediately. Build returns a Runtime starting in
// PhaseNeverConnected with no running task.
type Builder[S any] struct {
	shared    S
	src       StatusSource
	interval  time.Duration
	observer  func(from, to Phase, st Status)
	factories [phaseCount]Factory[S]
}

// NewBuilder creates a builder with the given shared state and status
// source.
func NewBuilder[S any](shared S, src StatusSource) *Builder[S] {
	b := &Builder[S]{shared: shared, src: src}
	def := func(*S) Task { return Done() }
	for p := PhaseDisconnected; p < phaseCount; p++ {
		b.factories[p] = def
	}
	// PhaseNeverConnected never gets a task.
	b.factories[PhaseNeverConnected] = nil
	return b
}

// OnConnect sets the factory for the one-shot connected phase. Its task
// runs to completion exactly once per connection event before any match
// mode task starts.
func (b *Builder[S]) OnConnect(mk Factory[S]) *Builder[S] {
	b.factories[PhaseConnected] = mk
	return b
}

// OnDisconnect sets the factory for the disconnected phase.
func (b *Builder[S]) OnDisconnect(mk Factory[S]) *Builder[S] {
	b.factories[PhaseDisconnected] = mk
	return b
}

// WhileDisabled sets the factory for the disabled match mode. A task that
// completes before the mode ends is not restarted.
func (b *Builder[S]) WhileDisabled(mk Factory[S]) *Builder[S] {
	b.factories[PhaseDisabled] = mk
	return b
}

// WhileAutonomous sets the factory for the autonomous match mode.
func (b *Builder[S]) WhileAutonomous(mk Factory[S]) *Builder[S] {
	b.factories[PhaseAutonomous] = mk
	return b
}

// WhileDriving sets the factory for the driver control match mode.
func (b *Builder[S]) WhileDriving(mk Factory[S]) *Builder[S] {
	b.factories[PhaseDriver] = mk
	return b
}

// StepInterval sets the pacing of Run. Zero keeps DefaultStepInterval.
func (b *Builder[S]) StepInterval(d time.Duration) *Builder[S] {
	b.interval = d
	return b
}

// Observe installs a phase-transition hook, called synchronously from the
// scheduling step with the status snapshot that caused the change. Keep it
// cheap.
func (b *Builder[S]) Observe(fn func(from, to Phase, st Status)) *Builder[S] {
	b.observer = fn
	return b
}

// Build finishes the builder.
func (b *Builder[S]) Build() *Runtime[S] {
	return &Runtime[S]{
		shared:    b.shared,
		updates:   NewUpdates(b.src),
		phase:     PhaseNeverConnected,
		factories: b.factories,
		interval:  b.interval,
		observer:  b.observer,
	}
}
