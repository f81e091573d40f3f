package competition

import "strings"

// Status is a snapshot of the raw competition-control status bits.
//
// The bit layout matches the brain's competition status register; a snapshot
// is an immutable value produced fresh on each poll.
type Status uint32

const (
	// StatusDisabled is set while field control keeps the robot disabled.
	StatusDisabled Status = 1 << 0

	// StatusAutonomous is set during the autonomous period.
	StatusAutonomous Status = 1 << 1

	// StatusConnected is set while the robot is tethered to competition
	// control (field controller or competition switch).
	StatusConnected Status = 1 << 2

	// StatusSystem distinguishes field control from a competition switch.
	StatusSystem Status = 1 << 3
)

// Connected reports whether the robot is tethered to competition control.
func (s Status) Connected() bool { return s&StatusConnected != 0 }

// Mode derives the match mode from the status bits.
//
// Disabled takes priority over Autonomous; Driver is the fallback when
// neither bit is set. That fallback is intentional: a connected robot with
// no disable/autonomous bit is in driver control.
func (s Status) Mode() Mode {
	switch {
	case s&StatusDisabled != 0:
		return ModeDisabled
	case s&StatusAutonomous != 0:
		return ModeAutonomous
	default:
		return ModeDriver
	}
}

// System reports which kind of controller owns the match state.
// ok is false when the robot is not connected to competition control.
func (s Status) System() (sys System, ok bool) {
	if !s.Connected() {
		return 0, false
	}
	if s&StatusSystem != 0 {
		return SystemFieldControl, true
	}
	return SystemCompetitionSwitch, true
}

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	parts := make([]string, 0, 4)
	if s&StatusDisabled != 0 {
		parts = append(parts, "disabled")
	}
	if s&StatusAutonomous != 0 {
		parts = append(parts, "autonomous")
	}
	if s&StatusConnected != 0 {
		parts = append(parts, "connected")
	}
	if s&StatusSystem != 0 {
		parts = append(parts, "field")
	}
	return strings.Join(parts, "|")
}

// Mode is a match mode in the competition lifecycle.
type Mode uint8

const (
	// ModeDisabled locks out actuation between match periods.
	ModeDisabled Mode = iota

	// ModeAutonomous runs the robot without driver input.
	ModeAutonomous

	// ModeDriver gives the drive team control.
	ModeDriver
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeAutonomous:
		return "autonomous"
	case ModeDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// System is the kind of hardware controlling match state.
type System uint8

const (
	// SystemFieldControl is a full field controller.
	SystemFieldControl System = iota

	// SystemCompetitionSwitch is a handheld competition switch.
	SystemCompetitionSwitch
)

func (s System) String() string {
	switch s {
	case SystemFieldControl:
		return "field_control"
	case SystemCompetitionSwitch:
		return "competition_switch"
	default:
		return "unknown"
	}
}

// StatusSource reads the current competition status.
//
// Reads must be cheap and non-blocking; the Runtime calls this once per
// scheduling step. Hardware, the field link, or a practice switch all sit
// behind this interface.
type StatusSource interface {
	CompetitionStatus() Status
}

// Updates turns a StatusSource into a change-detecting stream.
//
// PollNext yields the current status on the first poll and thereafter only
// when the status differs from the previously yielded one. The stream never
// ends; "exhaustion" cannot occur.
type Updates struct {
	src  StatusSource
	last Status
	seen bool
}

// NewUpdates creates an update stream over src.
func NewUpdates(src StatusSource) *Updates {
	return &Updates{src: src}
}

// PollNext reads the source once and reports whether a new status arrived.
func (u *Updates) PollNext() (Status, bool) {
	cur := u.src.CompetitionStatus()
	if u.seen && cur == u.last {
		return 0, false
	}
	u.last = cur
	u.seen = true
	return cur, true
}

// Last returns the most recently yielded status. Before the first PollNext
// it falls back to a fresh read so callers always see something coherent.
func (u *Updates) Last() Status {
	if !u.seen {
		return u.src.CompetitionStatus()
	}
	return u.last
}
