package competition

import (
	"context"
	"errors"
	"testing"
)

// stubSource is a settable status source for single-goroutine tests.
type stubSource struct{ st Status }

func (s *stubSource) CompetitionStatus() Status { return s.st }

// probeTask records poll/cancel activity and completes after a fixed number
// of polls (0 means never).
type probeTask struct {
	polls     int
	doneAfter int
	cancelled bool
	onDrop    func()
}

func (p *probeTask) Poll(context.Context) (bool, error) {
	p.polls++
	if p.doneAfter > 0 && p.polls >= p.doneAfter {
		return true, nil
	}
	return false, nil
}

func (p *probeTask) Cancel() {
	p.cancelled = true
	if p.onDrop != nil {
		p.onDrop()
	}
}

func step(t *testing.T, r *Runtime[int]) {
	t.Helper()
	if err := r.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
}

func TestNoOpDefaultsCompleteImmediately(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected | StatusDisabled}
	r := NewBuilder(0, src).Build()

	step(t, r) // status arrives, connected task constructed
	if got := r.Phase(); got != PhaseConnected {
		t.Fatalf("phase = %v, want connected", got)
	}
	step(t, r) // default task completes, falls through into disabled
	if got := r.Phase(); got != PhaseDisabled {
		t.Fatalf("phase = %v, want disabled", got)
	}
	step(t, r) // default disabled task completes; phase unchanged
	step(t, r)
	if got := r.Phase(); got != PhaseDisabled {
		t.Fatalf("phase = %v, want disabled", got)
	}
}

func TestEndToEndScenario(t *testing.T) {
	t.Parallel()
	src := &stubSource{}
	var disabled, autonomous *probeTask
	counts := map[Phase]int{}

	r := NewBuilder(0, src).
		OnConnect(func(*int) Task {
			counts[PhaseConnected]++
			return &probeTask{doneAfter: 2}
		}).
		WhileDisabled(func(*int) Task {
			counts[PhaseDisabled]++
			disabled = &probeTask{}
			return disabled
		}).
		WhileAutonomous(func(*int) Task {
			counts[PhaseAutonomous]++
			autonomous = &probeTask{}
			return autonomous
		}).
		Build()

	if got := r.Phase(); got != PhaseNeverConnected {
		t.Fatalf("initial phase = %v", got)
	}

	step(t, r) // first status (disconnected) arrives; still never connected
	if got := r.Phase(); got != PhaseNeverConnected {
		t.Fatalf("phase = %v, want never_connected", got)
	}

	src.st = StatusConnected | StatusDisabled
	step(t, r) // connect; on_connected constructed
	if got := r.Phase(); got != PhaseConnected {
		t.Fatalf("phase = %v, want connected", got)
	}
	if counts[PhaseConnected] != 1 {
		t.Fatalf("connected factory calls = %d", counts[PhaseConnected])
	}

	step(t, r) // connected task pending
	step(t, r) // connected task completes; finish -> disabled
	if got := r.Phase(); got != PhaseDisabled {
		t.Fatalf("phase = %v, want disabled", got)
	}
	if counts[PhaseDisabled] != 1 {
		t.Fatalf("disabled factory calls = %d", counts[PhaseDisabled])
	}

	step(t, r)
	step(t, r)
	if disabled.polls == 0 {
		t.Fatal("disabled task never polled")
	}

	src.st = StatusConnected | StatusAutonomous
	step(t, r) // mode change: disabled task dropped, autonomous constructed
	if got := r.Phase(); got != PhaseAutonomous {
		t.Fatalf("phase = %v, want autonomous", got)
	}
	if !disabled.cancelled {
		t.Fatal("disabled task not cancelled on mode change")
	}
	if counts[PhaseAutonomous] != 1 {
		t.Fatalf("autonomous factory calls = %d", counts[PhaseAutonomous])
	}
	if autonomous.cancelled {
		t.Fatal("fresh autonomous task already cancelled")
	}
}

func TestAtMostOneTaskAlive(t *testing.T) {
	t.Parallel()
	src := &stubSource{}
	alive := 0
	maxAlive := 0

	mk := func(*int) Task {
		alive++
		if alive > maxAlive {
			maxAlive = alive
		}
		p := &probeTask{}
		p.onDrop = func() { alive-- }
		return p
	}

	r := NewBuilder(0, src).
		OnConnect(mk).
		OnDisconnect(mk).
		WhileDisabled(mk).
		WhileAutonomous(mk).
		WhileDriving(mk).
		Build()

	script := []Status{
		0,
		StatusConnected | StatusDisabled,
		0,
		StatusConnected,
		StatusConnected | StatusAutonomous,
		StatusConnected | StatusDisabled,
		0,
		StatusConnected | StatusSystem,
	}
	for _, st := range script {
		src.st = st
		step(t, r)
		step(t, r)
	}

	if maxAlive > 1 {
		t.Fatalf("max simultaneously alive tasks = %d, want <= 1", maxAlive)
	}
}

func TestTaskErrorIsFatal(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("drivetrain fault")
	src := &stubSource{st: StatusConnected | StatusDisabled}
	constructions := 0

	r := NewBuilder(0, src).
		WhileDisabled(func(*int) Task {
			constructions++
			return Fail(errBoom)
		}).
		Build()

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = r.Step(context.Background())
	}
	if !errors.Is(err, errBoom) {
		t.Fatalf("Step error = %v, want %v", err, errBoom)
	}
	if constructions != 1 {
		t.Fatalf("factory calls after failure = %d, want 1", constructions)
	}

	// The runtime is terminal: further steps return the same error and
	// construct nothing.
	if err := r.Step(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("post-failure Step = %v, want %v", err, errBoom)
	}
	if constructions != 1 {
		t.Fatalf("factory ran again after fatal error")
	}
}

func TestFinishLeavesModePhaseAlone(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected}
	driverCalls := 0

	r := NewBuilder(0, src).
		WhileDriving(func(*int) Task {
			driverCalls++
			return &probeTask{doneAfter: 1}
		}).
		Build()

	step(t, r) // connected
	step(t, r) // default connected task completes -> driver, task constructed
	if got := r.Phase(); got != PhaseDriver {
		t.Fatalf("phase = %v, want driver", got)
	}
	step(t, r) // driver task completes early
	step(t, r)
	step(t, r)
	if got := r.Phase(); got != PhaseDriver {
		t.Fatalf("phase = %v, want driver", got)
	}
	if driverCalls != 1 {
		t.Fatalf("driver factory calls = %d, want 1 (no restart)", driverCalls)
	}
}

func TestStatusChangeWinsOverFinish(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected | StatusDisabled}
	disconnectedCalls := 0
	connectedCalls := 0

	r := NewBuilder(0, src).
		OnConnect(func(*int) Task {
			connectedCalls++
			return &probeTask{doneAfter: 2}
		}).
		OnDisconnect(func(*int) Task {
			disconnectedCalls++
			return &probeTask{}
		}).
		Build()

	step(t, r) // connect, construct connected task
	step(t, r) // connected task pending (poll 1)

	// Unplug in the same step the connected task completes (poll 2). The
	// disconnect transition must win; the finish transition must not fire.
	src.st = 0
	step(t, r)
	if got := r.Phase(); got != PhaseDisconnected {
		t.Fatalf("phase = %v, want disconnected", got)
	}
	if disconnectedCalls != 1 {
		t.Fatalf("disconnected factory calls = %d, want 1", disconnectedCalls)
	}
	if connectedCalls != 1 {
		t.Fatalf("connected factory calls = %d, want 1", connectedCalls)
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected | StatusAutonomous}
	type hop struct{ from, to Phase }
	var hops []hop

	r := NewBuilder(0, src).
		Observe(func(from, to Phase, _ Status) {
			hops = append(hops, hop{from, to})
		}).
		Build()

	step(t, r) // -> connected
	step(t, r) // default task completes -> autonomous
	want := []hop{
		{PhaseNeverConnected, PhaseConnected},
		{PhaseConnected, PhaseAutonomous},
	}
	if len(hops) != len(want) {
		t.Fatalf("transitions = %v, want %v", hops, want)
	}
	for i := range want {
		if hops[i] != want[i] {
			t.Fatalf("transition[%d] = %v, want %v", i, hops[i], want[i])
		}
	}
}
