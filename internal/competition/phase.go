package competition

// Phase is the runtime's current high-level lifecycle state.
//
// Exactly one Phase is active at any instant; it is the sole authority
// determining which task factory runs. The three match-mode phases are the
// connected sub-modes derived from the status bits.
type Phase uint8

const (
	// PhaseNeverConnected is the initial state, replaced the moment the
	// first status snapshot arrives.
	PhaseNeverConnected Phase = iota

	// PhaseDisconnected means competition control was unplugged.
	PhaseDisconnected

	// PhaseConnected is the transient just-connected phase; its task runs
	// one-time setup and completes.
	PhaseConnected

	// PhaseDisabled, PhaseAutonomous and PhaseDriver are the match modes.
	PhaseDisabled
	PhaseAutonomous
	PhaseDriver

	phaseCount
)

func phaseForMode(m Mode) Phase {
	switch m {
	case ModeAutonomous:
		return PhaseAutonomous
	case ModeDriver:
		return PhaseDriver
	default:
		return PhaseDisabled
	}
}

// InMode reports whether p is one of the three match-mode phases.
func (p Phase) InMode() bool {
	return p == PhaseDisabled || p == PhaseAutonomous || p == PhaseDriver
}

func (p Phase) String() string {
	switch p {
	case PhaseNeverConnected:
		return "never_connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnected:
		return "connected"
	case PhaseDisabled:
		return "disabled"
	case PhaseAutonomous:
		return "autonomous"
	case PhaseDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// nextPhase applies a fresh status snapshot to the current phase.
//
// Connection changes dominate: any phase drops to PhaseDisconnected when the
// tether is lost, and (re)connecting from NeverConnected/Disconnected enters
// the one-shot PhaseConnected. While in a match mode the mode is re-derived
// on every update.
func nextPhase(p Phase, st Status) Phase {
	switch {
	case (p == PhaseNeverConnected || p == PhaseDisconnected) && st.Connected():
		return PhaseConnected
	case (p == PhaseConnected || p.InMode()) && !st.Connected():
		return PhaseDisconnected
	case p.InMode() && st.Connected():
		return phaseForMode(st.Mode())
	default:
		return p
	}
}

// finishPhase is applied when the running task for phase p completes
// cleanly. Completing the one-shot connected task falls through into
// whichever match mode is currently active; completing any other task
// leaves the phase alone (mode tasks are not restarted until the phase
// changes externally).
func finishPhase(p Phase, st Status) Phase {
	if p == PhaseConnected {
		return phaseForMode(st.Mode())
	}
	return p
}
