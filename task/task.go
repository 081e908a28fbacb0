// Package task holds the pure data records for the three task kinds and
// their progress state (C3). Records are plain structs; equality between
// tasks is always by list index, never by content, per spec — this package
// never defines an Equal method for that reason.
package task

import (
	"github.com/google/uuid"

	"github.com/bluewater-robotics/missionexec/geo"
)

// PathKind distinguishes a transit pre-roll path from other path uses.
type PathKind int

const (
	// PathKindUnspecified means no path kind has been recorded.
	PathKindUnspecified PathKind = iota
	// PathKindTransit marks a path built purely to line up on a target.
	PathKindTransit
)

// Kind discriminates the three task variants.
type Kind int

const (
	// KindGoto is a single waypoint-goto task.
	KindGoto Kind = iota
	// KindHover is a station-keeping task.
	KindHover
	// KindMissionPlan is a composite mission built from nav objectives.
	KindMissionPlan
)

func (k Kind) String() string {
	switch k {
	case KindGoto:
		return "goto"
	case KindHover:
		return "hover"
	case KindMissionPlan:
		return "mission_plan"
	default:
		return "unknown"
	}
}

// ObjectiveKind discriminates the two nav-objective variants.
type ObjectiveKind int

const (
	// ObjectiveTrackLine is an ordered list of waypoints to follow.
	ObjectiveTrackLine ObjectiveKind = iota
	// ObjectiveSurveyArea is a polygon boundary to cover.
	ObjectiveSurveyArea
)

// NavObjective is a sub-unit of a MissionPlan.
type NavObjective struct {
	Kind      ObjectiveKind
	Waypoints []geo.Point // TrackLine: >=1 waypoints
	Boundary  []geo.Point // SurveyAreaObj: >=3 boundary points
}

// Valid reports whether the objective satisfies its minimum cardinality.
func (o NavObjective) Valid() bool {
	switch o.Kind {
	case ObjectiveTrackLine:
		return len(o.Waypoints) >= 1
	case ObjectiveSurveyArea:
		return len(o.Boundary) >= 3
	default:
		return false
	}
}

// Task is a tagged-variant record for one queued unit of work.
type Task struct {
	ID   uuid.UUID // correlation id only; never used for equality or routing
	Kind Kind

	// Goto / Hover fields.
	Target   geo.Point
	Path     []geo.Pose // derived; nil means "not yet built"
	PathKind PathKind
	Speed    float32

	// MissionPlan fields.
	Label         string
	DefaultSpeed  float32
	DoTransit     bool
	NavObjectives []NavObjective
	CurrentIndex  *int // nil means unset
	CurrentPath   []geo.Pose
	TransitPath   []geo.Pose
}

// NewGoto builds a Goto task targeting the given point at the given speed.
func NewGoto(target geo.Point, speed float32) *Task {
	return &Task{ID: uuid.New(), Kind: KindGoto, Target: target, Speed: speed}
}

// NewHover builds a Hover task at the given point and speed.
func NewHover(target geo.Point, speed float32) *Task {
	return &Task{ID: uuid.New(), Kind: KindHover, Target: target, Speed: speed}
}

// NewMissionPlan builds a MissionPlan task with the given label, objectives,
// and rolling default speed. do_transit defaults to true per spec.
func NewMissionPlan(label string, defaultSpeed float32, objectives []NavObjective) *Task {
	return &Task{
		ID:            uuid.New(),
		Kind:          KindMissionPlan,
		Label:         label,
		DefaultSpeed:  defaultSpeed,
		DoTransit:     true,
		NavObjectives: objectives,
	}
}

// InvalidatePaths clears all derived path state per invariant 5: any
// mutation that moves the current objective or current task invalidates
// current_path, transit_path, and path.
func (t *Task) InvalidatePaths() {
	t.Path = nil
	t.PathKind = PathKindUnspecified
	t.CurrentPath = nil
	t.TransitPath = nil
}

// InvalidateIndex clears the mission plan's current objective pointer and
// its derived paths, per invariant 3/5.
func (t *Task) InvalidateIndex() {
	t.CurrentIndex = nil
	t.InvalidatePaths()
}

// CurrentObjective returns the objective at CurrentIndex, or false if unset
// or out of range (invariant 3 is the caller's responsibility to restore).
func (t *Task) CurrentObjective() (NavObjective, bool) {
	if t.Kind != KindMissionPlan || t.CurrentIndex == nil {
		return NavObjective{}, false
	}
	idx := *t.CurrentIndex
	if idx < 0 || idx >= len(t.NavObjectives) {
		return NavObjective{}, false
	}
	return t.NavObjectives[idx], true
}

// QueueLabel returns the status-channel rendering of this task's type, per
// spec.md §6.3 ("<type>" or "mission_plan (<label>)").
func (t *Task) QueueLabel() string {
	if t.Kind == KindMissionPlan {
		return "mission_plan (" + t.Label + ")"
	}
	return t.Kind.String()
}
