package competition

import "context"

// Compete is the behavior-object form of the five phase factories: one
// method per phase on a single robot type, with the robot itself as the
// shared state.
//
// Methods run on their own goroutine (via Go) and must honor ctx: the
// context is cancelled when the phase is torn down. A returned error is
// fatal to the whole competition run.
type Compete interface {
	// Connected runs once per connection event, to completion, before any
	// match mode method starts.
	Connected(ctx context.Context) error

	// Disconnected runs when competition control is unplugged.
	Disconnected(ctx context.Context) error

	// Disabled runs while field control keeps the robot disabled.
	Disabled(ctx context.Context) error

	// Autonomous runs during the autonomous period.
	Autonomous(ctx context.Context) error

	// Driver runs during driver control.
	Driver(ctx context.Context) error
}

// CompeteBase is an embeddable no-op implementation of Compete, so robots
// only spell out the phases they care about.
type CompeteBase struct{}

func (CompeteBase) Connected(context.Context) error    { return nil }
func (CompeteBase) Disconnected(context.Context) error { return nil }
func (CompeteBase) Disabled(context.Context) error     { return nil }
func (CompeteBase) Autonomous(context.Context) error   { return nil }
func (CompeteBase) Driver(context.Context) error       { return nil }

// NewCompeteBuilder wires each phase of a Builder to the matching method of
// robot. Callers may still adjust the builder (step interval, observer)
// before Build.
func NewCompeteBuilder[R Compete](robot R, src StatusSource) *Builder[R] {
	return NewBuilder(robot, src).
		OnConnect(func(r *R) Task {
			return Go(func(ctx context.Context) error { return (*r).Connected(ctx) })
		}).
		OnDisconnect(func(r *R) Task {
			return Go(func(ctx context.Context) error { return (*r).Disconnected(ctx) })
		}).
		WhileDisabled(func(r *R) Task {
			return Go(func(ctx context.Context) error { return (*r).Disabled(ctx) })
		}).
		WhileAutonomous(func(r *R) Task {
			return Go(func(ctx context.Context) error { return (*r).Autonomous(ctx) })
		}).
		WhileDriving(func(r *R) Task {
			return Go(func(ctx context.Context) error { return (*r).Driver(ctx) })
		})
}
