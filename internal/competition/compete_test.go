package competition

import (
	"context"
	"sync"
	"testing"
	"time"
)

// orderedRobot records which phase methods ran. Mode methods block until
// their context is cancelled so teardown ordering is observable.
type orderedRobot struct {
	CompeteBase

	mu    sync.Mutex
	calls []string
}

func (r *orderedRobot) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *orderedRobot) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *orderedRobot) Connected(context.Context) error {
	r.record("connected")
	return nil
}

func (r *orderedRobot) Disabled(ctx context.Context) error {
	r.record("disabled")
	<-ctx.Done()
	return nil
}

func (r *orderedRobot) Autonomous(ctx context.Context) error {
	r.record("autonomous")
	<-ctx.Done()
	return nil
}

func stepUntil(t *testing.T, r *Runtime[*orderedRobot], cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := r.Step(context.Background()); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestCompeteBuilderRunsMethodsInOrder(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected | StatusDisabled}
	robot := &orderedRobot{}
	r := NewCompeteBuilder(robot, src).Build()

	stepUntil(t, r, func() bool { return r.Phase() == PhaseDisabled })
	src.st = StatusConnected | StatusAutonomous
	stepUntil(t, r, func() bool { return r.Phase() == PhaseAutonomous })
	stepUntil(t, r, func() bool { return len(robot.snapshot()) >= 3 })

	want := []string{"connected", "disabled", "autonomous"}
	got := robot.snapshot()
	if len(got) < len(want) {
		t.Fatalf("calls = %v, want prefix %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestCompeteBaseIsNoOp(t *testing.T) {
	t.Parallel()
	var b CompeteBase
	ctx := context.Background()
	for name, fn := range map[string]func(context.Context) error{
		"connected":    b.Connected,
		"disconnected": b.Disconnected,
		"disabled":     b.Disabled,
		"autonomous":   b.Autonomous,
		"driver":       b.Driver,
	} {
		if err := fn(ctx); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestGoTaskCancelWaitsForExit(t *testing.T) {
	t.Parallel()
	released := make(chan struct{})
	task := Go(func(ctx context.Context) error {
		<-ctx.Done()
		close(released)
		return nil
	})

	if done, err := task.Poll(context.Background()); done || err != nil {
		t.Fatalf("Poll = (%v, %v), want pending", done, err)
	}

	task.Cancel()
	select {
	case <-released:
	default:
		t.Fatal("Cancel returned before the task function exited")
	}
}
