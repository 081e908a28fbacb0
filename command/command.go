// Package command implements the external command grammar (C4): parsing
// text commands into mutations on the task model, including the
// mission_plan JSON-tree expansion described in spec.md §4.4.1.
package command

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/task"
)

// PendingKind enumerates the values the pending_command slot can hold.
type PendingKind int

const (
	// PendingNone means no command is pending.
	PendingNone PendingKind = iota
	// PendingNextTask advances to the next task.
	PendingNextTask
	// PendingPrevTask retreats to the previous task.
	PendingPrevTask
	// PendingDoOverride installs the override task as current.
	PendingDoOverride
	// PendingRestartMission resets every mission plan's progress.
	PendingRestartMission
	// PendingGotoTask jumps to task index N.
	PendingGotoTask
	// PendingGotoLine jumps to objective index N without transit.
	PendingGotoLine
	// PendingStartLine jumps to objective index N with transit.
	PendingStartLine
)

// Pending is a pending_command value; N is meaningful only for the
// index-carrying kinds (GotoTask/GotoLine/StartLine).
type Pending struct {
	Kind PendingKind
	N    int
}

// Verb enumerates the mutating effect an Action has on the task list, kept
// separate from Pending because several verbs (clear_tasks, append_task)
// mutate the list without touching pending_command.
type Verb int

const (
	// VerbNone performs no list mutation (pure pending-setting commands).
	VerbNone Verb = iota
	VerbReplaceTasks
	VerbAppendTasks
	VerbPrependTasks
	VerbClearTasks
	VerbInstallOverride
)

// Action is the parsed, ready-to-apply effect of one command line.
type Action struct {
	CorrelationID primitive.ObjectID // diagnostic only, grounded on navigation waypoint ids
	Raw           string
	Verb          Verb
	Tasks         []*task.Task // for Replace/Append/Prepend
	OverrideTask  *task.Task   // for InstallOverride
	Pending       *Pending     // nil means "do not touch pending_command"
}

// Parser parses command-channel text into Actions. It carries the rolling
// speed used while expanding mission_plan JSON trees (spec.md §4.4.1); the
// rolling speed persists across calls to Parse on the same Parser, the way
// a single commander's Platform directives accumulate over a session.
type Parser struct {
	rollingSpeedMps float32
	defaultSpeedMps float32
}

// NewParser builds a Parser seeded with the core's configured default speed.
func NewParser(defaultSpeedMps float32) *Parser {
	return &Parser{rollingSpeedMps: defaultSpeedMps, defaultSpeedMps: defaultSpeedMps}
}

// Parse parses one whitespace-separated command line into an Action.
// Malformed commands (wrong arity, unparseable floats, unknown verb) are
// reported as an error and must be dropped by the caller; parser state
// (the rolling speed) is left untouched so a later valid command is
// unaffected.
func (p *Parser) Parse(line string) (*Action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}
	verb := fields[0]
	rest := fields[1:]
	id := primitive.NewObjectID()

	switch verb {
	case "replace_task":
		tasks, err := p.parseTaskSpec(rest)
		if err != nil {
			return nil, errors.Wrap(err, "replace_task")
		}
		return &Action{
			CorrelationID: id, Raw: line, Verb: VerbReplaceTasks, Tasks: tasks,
			Pending: &Pending{Kind: PendingNextTask},
		}, nil

	case "append_task":
		tasks, err := p.parseTaskSpec(rest)
		if err != nil {
			return nil, errors.Wrap(err, "append_task")
		}
		return &Action{CorrelationID: id, Raw: line, Verb: VerbAppendTasks, Tasks: tasks}, nil

	case "prepend_task":
		tasks, err := p.parseTaskSpec(rest)
		if err != nil {
			return nil, errors.Wrap(err, "prepend_task")
		}
		return &Action{CorrelationID: id, Raw: line, Verb: VerbPrependTasks, Tasks: tasks}, nil

	case "clear_tasks":
		return &Action{CorrelationID: id, Raw: line, Verb: VerbClearTasks}, nil

	case "next_task":
		return &Action{CorrelationID: id, Raw: line, Pending: &Pending{Kind: PendingNextTask}}, nil

	case "prev_task":
		return &Action{CorrelationID: id, Raw: line, Pending: &Pending{Kind: PendingPrevTask}}, nil

	case "restart_mission":
		return &Action{CorrelationID: id, Raw: line, Pending: &Pending{Kind: PendingRestartMission}}, nil

	case "goto_task", "goto_line", "start_line":
		if len(rest) != 1 {
			return nil, errors.Errorf("%s: expected exactly one index argument", verb)
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: invalid index %q", verb, rest[0])
		}
		kind := map[string]PendingKind{
			"goto_task": PendingGotoTask,
			"goto_line": PendingGotoLine,
			"start_line": PendingStartLine,
		}[verb]
		return &Action{CorrelationID: id, Raw: line, Pending: &Pending{Kind: kind, N: n}}, nil

	case "override":
		if len(rest) != 3 {
			return nil, errors.New("override: expected '<goto|hover> <lat> <lon>'")
		}
		kind, latS, lonS := rest[0], rest[1], rest[2]
		lat, lon, err := parseLatLon(latS, lonS)
		if err != nil {
			return nil, errors.Wrap(err, "override")
		}
		target := geo.Point{LatDeg: lat, LonDeg: lon}
		var t *task.Task
		switch kind {
		case "goto":
			t = task.NewGoto(target, p.rollingSpeedMps)
		case "hover":
			t = task.NewHover(target, p.rollingSpeedMps)
		default:
			return nil, errors.Errorf("override: unknown task kind %q", kind)
		}
		return &Action{
			CorrelationID: id, Raw: line, Verb: VerbInstallOverride, OverrideTask: t,
			Pending: &Pending{Kind: PendingDoOverride},
		}, nil

	default:
		return nil, errors.Errorf("unknown command verb %q", verb)
	}
}

// parseTaskSpec parses the <taskspec> grammar shared by replace/append/prepend_task.
func (p *Parser) parseTaskSpec(fields []string) ([]*task.Task, error) {
	if len(fields) == 0 {
		return nil, errors.New("missing task spec")
	}
	switch fields[0] {
	case "goto":
		if len(fields) != 3 {
			return nil, errors.New("goto: expected '<lat> <lon>'")
		}
		lat, lon, err := parseLatLon(fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		return []*task.Task{task.NewGoto(geo.Point{LatDeg: lat, LonDeg: lon}, p.rollingSpeedMps)}, nil

	case "hover":
		if len(fields) != 3 {
			return nil, errors.New("hover: expected '<lat> <lon>'")
		}
		lat, lon, err := parseLatLon(fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		return []*task.Task{task.NewHover(geo.Point{LatDeg: lat, LonDeg: lon}, p.rollingSpeedMps)}, nil

	case "mission_plan":
		payload := strings.Join(fields[1:], " ")
		if strings.TrimSpace(payload) == "" {
			return nil, errors.New("mission_plan: missing JSON payload")
		}
		var items []jsonItem
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, errors.Wrap(err, "mission_plan: invalid JSON")
		}
		var tasks []*task.Task
		for _, item := range items {
			tasks = append(tasks, p.expand(item)...)
		}
		return tasks, nil

	default:
		return nil, errors.Errorf("unknown taskspec kind %q", fields[0])
	}
}

// jsonItem is the generic node shape of a mission_plan JSON tree.
type jsonItem struct {
	Type     string     `json:"type"`
	Speed    *float64   `json:"speed,omitempty"`
	Label    string     `json:"label,omitempty"`
	Lat      float64    `json:"lat,omitempty"`
	Lon      float64    `json:"lon,omitempty"`
	Children []jsonItem `json:"children,omitempty"`
}

func (i jsonItem) point() geo.Point {
	return geo.Point{LatDeg: i.Lat, LonDeg: i.Lon}
}

func (i jsonItem) allChildrenAreWaypoints() bool {
	if len(i.Children) == 0 {
		return false
	}
	for _, c := range i.Children {
		if c.Type != "Waypoint" {
			return false
		}
	}
	return true
}

func (i jsonItem) waypointPoints() []geo.Point {
	pts := make([]geo.Point, 0, len(i.Children))
	for _, c := range i.Children {
		if c.Type == "Waypoint" {
			pts = append(pts, c.point())
		}
	}
	return pts
}

// expand implements spec.md §4.4.1's recursive mission-plan expansion.
func (p *Parser) expand(item jsonItem) []*task.Task {
	switch item.Type {
	case "Platform":
		if item.Speed != nil {
			p.rollingSpeedMps = float32(*item.Speed * 0.514444)
		}
		return nil

	case "SurveyPattern":
		objectives := make([]task.NavObjective, 0, len(item.Children))
		for _, child := range item.Children {
			if obj, ok := toObjective(child); ok {
				objectives = append(objectives, obj)
			}
		}
		return []*task.Task{task.NewMissionPlan(item.Label, p.rollingSpeedMps, objectives)}

	case "TrackLine":
		obj, ok := toObjective(item)
		if !ok {
			return nil
		}
		return []*task.Task{task.NewMissionPlan(item.Label, p.rollingSpeedMps, []task.NavObjective{obj})}

	case "SurveyArea":
		if item.allChildrenAreWaypoints() {
			boundary := item.waypointPoints()
			obj := task.NavObjective{Kind: task.ObjectiveSurveyArea, Boundary: boundary}
			return []*task.Task{task.NewMissionPlan(item.Label, p.rollingSpeedMps, []task.NavObjective{obj})}
		}
		var tasks []*task.Task
		for _, child := range item.Children {
			tasks = append(tasks, p.expand(child)...)
		}
		return tasks

	case "Group":
		var tasks []*task.Task
		for _, child := range item.Children {
			tasks = append(tasks, p.expand(child)...)
		}
		return tasks

	default:
		return nil
	}
}

// toObjective converts a TrackLine-shaped item (or a SurveyArea being
// treated as one) into a NavObjective.
func toObjective(item jsonItem) (task.NavObjective, bool) {
	switch item.Type {
	case "TrackLine":
		pts := item.waypointPoints()
		if len(pts) < 1 {
			return task.NavObjective{}, false
		}
		return task.NavObjective{Kind: task.ObjectiveTrackLine, Waypoints: pts}, true
	case "SurveyArea":
		pts := item.waypointPoints()
		if len(pts) < 3 {
			return task.NavObjective{}, false
		}
		return task.NavObjective{Kind: task.ObjectiveSurveyArea, Boundary: pts}, true
	default:
		return task.NavObjective{}, false
	}
}

func parseLatLon(latS, lonS string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(latS, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid latitude %q", latS)
	}
	lon, err = strconv.ParseFloat(lonS, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid longitude %q", lonS)
	}
	return lat, lon, nil
}
