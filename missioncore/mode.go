package missioncore

// PilotingModeKind discriminates the PilotingMode variant.
type PilotingModeKind int

const (
	// ModeStandby disables task execution.
	ModeStandby PilotingModeKind = iota
	// ModeAutonomous enables task execution.
	ModeAutonomous
	// ModeOther covers any other commanded piloting mode string.
	ModeOther
)

// PilotingMode is the {Standby, Autonomous, Other(string)} variant from
// spec.md §3. Only Autonomous enables task execution.
type PilotingMode struct {
	Kind  PilotingModeKind
	Other string // populated only when Kind == ModeOther
}

// ParsePilotingMode parses the §6.2 text payload ("standby" | "autonomous" | <other>).
func ParsePilotingMode(s string) PilotingMode {
	switch s {
	case "standby":
		return PilotingMode{Kind: ModeStandby}
	case "autonomous":
		return PilotingMode{Kind: ModeAutonomous}
	default:
		return PilotingMode{Kind: ModeOther, Other: s}
	}
}

func (m PilotingMode) String() string {
	switch m.Kind {
	case ModeStandby:
		return "standby"
	case ModeAutonomous:
		return "autonomous"
	default:
		return m.Other
	}
}
