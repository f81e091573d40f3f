// Package robot holds the robot behavior that the competition runtime
// schedules. The stock implementation just narrates its phases; teams
// replace the method bodies with real routines.
package robot

import (
	"context"
	"time"

	"braind/internal/competition"
	"braind/pkg/logx"
)

// Robot is the daemon's Compete implementation.
type Robot struct {
	competition.CompeteBase

	log logx.Logger

	// DriverTick paces the driver control loop. Defaults to 20ms, roughly
	// the cadence of controller input.
	DriverTick time.Duration
}

func New(log logx.Logger) *Robot {
	return &Robot{log: log.With(logx.String("component", "robot"))}
}

func (r *Robot) Connected(ctx context.Context) error {
	r.log.Info("field control connected")
	return nil
}

func (r *Robot) Disconnected(ctx context.Context) error {
	r.log.Info("field control disconnected")
	return nil
}

func (r *Robot) Disabled(ctx context.Context) error {
	r.log.Info("disabled")
	<-ctx.Done()
	return nil
}

func (r *Robot) Autonomous(ctx context.Context) error {
	r.log.Info("autonomous period started")
	// Autonomous routines go here. Returning early is fine; the runtime
	// holds the phase until the field moves on.
	<-ctx.Done()
	return nil
}

func (r *Robot) Driver(ctx context.Context) error {
	tick := r.DriverTick
	if tick <= 0 {
		tick = 20 * time.Millisecond
	}
	r.log.Info("driver control started", logx.Duration("tick", tick))

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			// Controller reads and drivetrain writes go here.
		}
	}
}
