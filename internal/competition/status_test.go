package competition

import "testing"

func TestModeDerivationTotalAndExclusive(t *testing.T) {
	t.Parallel()
	// Every bit combination must derive exactly one mode, with disabled
	// taking priority over autonomous and driver as the fallback.
	for bits := Status(0); bits < 16; bits++ {
		got := bits.Mode()
		var want Mode
		switch {
		case bits&StatusDisabled != 0:
			want = ModeDisabled
		case bits&StatusAutonomous != 0:
			want = ModeAutonomous
		default:
			want = ModeDriver
		}
		if got != want {
			t.Fatalf("Status(%04b).Mode() = %v, want %v", bits, got, want)
		}
	}
}

func TestStatusConnected(t *testing.T) {
	t.Parallel()
	if (StatusDisabled | StatusAutonomous).Connected() {
		t.Fatal("status without connected bit reported connected")
	}
	if !(StatusConnected | StatusDisabled).Connected() {
		t.Fatal("status with connected bit reported disconnected")
	}
}

func TestStatusSystem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status Status
		sys    System
		ok     bool
	}{
		{name: "not connected", status: StatusSystem, ok: false},
		{name: "competition switch", status: StatusConnected, sys: SystemCompetitionSwitch, ok: true},
		{name: "field control", status: StatusConnected | StatusSystem, sys: SystemFieldControl, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, ok := tt.status.System()
			if ok != tt.ok {
				t.Fatalf("System() ok = %v, want %v", ok, tt.ok)
			}
			if ok && sys != tt.sys {
				t.Fatalf("System() = %v, want %v", sys, tt.sys)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	if got := Status(0).String(); got != "none" {
		t.Fatalf("String() = %q, want none", got)
	}
	if got := (StatusConnected | StatusDisabled).String(); got != "disabled|connected" {
		t.Fatalf("String() = %q", got)
	}
}

func TestUpdatesYieldsOnChangeOnly(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected}
	u := NewUpdates(src)

	st, ok := u.PollNext()
	if !ok || st != StatusConnected {
		t.Fatalf("first poll = (%v, %v), want (connected, true)", st, ok)
	}
	if _, ok := u.PollNext(); ok {
		t.Fatal("unchanged status yielded again")
	}

	src.st = StatusConnected | StatusAutonomous
	st, ok = u.PollNext()
	if !ok || st != StatusConnected|StatusAutonomous {
		t.Fatalf("changed status not yielded: (%v, %v)", st, ok)
	}
	if got := u.Last(); got != StatusConnected|StatusAutonomous {
		t.Fatalf("Last() = %v", got)
	}
}

func TestUpdatesLastBeforeFirstPoll(t *testing.T) {
	t.Parallel()
	src := &stubSource{st: StatusConnected | StatusDisabled}
	u := NewUpdates(src)
	if got := u.Last(); got != StatusConnected|StatusDisabled {
		t.Fatalf("Last() before first poll = %v, want fresh read", got)
	}
}
