// Package missioncore implements the mission core (C5): the task list, the
// current-task pointer, the override slot, the saved-task slot, the
// pending-command mailbox, and the piloting-mode flag, plus the
// task-advancement policy (next_task) and the cooperative scheduling point
// (iterate) consumed once per tick by every active executor state.
package missioncore

import (
	"context"
	"sync"
	"time"

	"github.com/bluewater-robotics/missionexec/command"
	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/task"
)

// Outcome is the sum type returned by Iterate.
type Outcome int

const (
	// OutcomeNone means the tick elapsed normally; the caller should continue.
	OutcomeNone Outcome = iota
	// OutcomePause means piloting mode left Autonomous.
	OutcomePause
	// OutcomeCancelled means a command is pending and the state should unwind.
	OutcomeCancelled
	// OutcomeExit means the process is shutting down.
	OutcomeExit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomePause:
		return "pause"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExit:
		return "exit"
	default:
		return "unknown"
	}
}

// VehiclePositioner supplies the vehicle's current position, used to
// synthesize a transient Hover when task advancement falls off the list
// with DoneBehavior=Hover.
type VehiclePositioner interface {
	CurrentPoint() (geo.Point, bool)
}

// DistanceBearer supplies distance/bearing from the vehicle to a point,
// used by WaypointReached.
type DistanceBearer interface {
	DistanceBearingTo(target geo.Point) (meters, bearingDeg float64, ok bool)
}

// StatusSink receives a heartbeat snapshot on every non-paused iterate tick.
type StatusSink interface {
	PublishHeartbeat(Snapshot)
}

// Snapshot is the data iterate hands to the status publisher each tick,
// mirroring the key-value heartbeat contract in spec.md §6.3.
type Snapshot struct {
	StateName                    string
	TasksCount                   int
	QueueLabels                  []string
	HasCurrentTask               bool
	CurrentTaskType              string
	CurrentTaskLabel             string
	CurrentTaskNavObjectiveCount int
	CurrentTaskNavObjectiveIndex *int
}

// Core is the C5 mission core singleton.
type Core struct {
	mu sync.Mutex

	tasks         []*task.Task
	currentIdx    *int
	overrideTask  *task.Task
	savedTask     *task.Task
	transientTask *task.Task // synthesized Hover not present in tasks
	pending       *command.Pending
	pilotingMode  PilotingMode

	lastCorrelation string

	cfg        Config
	log        logging.Logger
	statusSink StatusSink
}

// New constructs an empty Core in Standby mode.
func New(cfg Config, log logging.Logger) *Core {
	return &Core{
		cfg:          cfg,
		log:          log.Named("missioncore"),
		pilotingMode: PilotingMode{Kind: ModeStandby},
	}
}

// SetStatusSink wires the status publisher invoked once per iterate tick.
func (c *Core) SetStatusSink(sink StatusSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusSink = sink
}

// SetPilotingMode mutates the piloting-mode flag from the external transport.
func (c *Core) SetPilotingMode(m PilotingMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pilotingMode = m
}

// PilotingMode returns the current piloting mode.
func (c *Core) PilotingMode() PilotingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pilotingMode
}

// Tasks returns a shallow copy of the task list, safe for callers to read.
func (c *Core) Tasks() []*task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*task.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Apply applies one parsed command Action to the core (C4 -> C5 boundary).
func (c *Core) Apply(action *command.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastCorrelation = action.CorrelationID.Hex()

	switch action.Verb {
	case command.VerbReplaceTasks:
		c.tasks = action.Tasks
		c.currentIdx = nil
		c.savedTask = nil
		c.overrideTask = nil
		c.transientTask = nil
	case command.VerbAppendTasks:
		c.tasks = append(c.tasks, action.Tasks...)
	case command.VerbPrependTasks:
		// Prepend to the list. The source's prepend branch referenced a
		// singular attribute inconsistent with the plural list; this
		// implementation prepends to the list, per spec.md §9.
		c.tasks = append(append([]*task.Task{}, action.Tasks...), c.tasks...)
		if c.currentIdx != nil {
			shifted := *c.currentIdx + len(action.Tasks)
			c.currentIdx = &shifted
		}
	case command.VerbClearTasks:
		c.tasks = nil
		c.currentIdx = nil
		c.savedTask = nil
		// Conservative per spec.md §9 design note: clear_tasks while an
		// override is active is unspecified by the source; dropping the
		// override on any structural mutation of tasks avoids a dangling
		// saved_task reference.
		c.overrideTask = nil
		c.transientTask = nil
	case command.VerbInstallOverride:
		c.overrideTask = action.OverrideTask
	case command.VerbNone:
		// no list mutation
	}

	if action.Pending != nil {
		// Last-writer-wins: a command deposited here overwrites any prior
		// unconsumed command, per invariant 4.
		c.pending = action.Pending
	}
}

// HasPendingCommand reports whether a command is waiting to be consumed.
func (c *Core) HasPendingCommand() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// currentTaskLocked returns the indexed current task, the mutex must
// already be held.
func (c *Core) currentTaskLocked() *task.Task {
	if c.currentIdx == nil {
		return nil
	}
	idx := *c.currentIdx
	if idx < 0 || idx >= len(c.tasks) {
		return nil
	}
	return c.tasks[idx]
}

// GetCurrentTask returns the override task if present, else the current
// task (which may be the transient synthesized Hover), per spec.md §4.5.
func (c *Core) GetCurrentTask() *task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overrideTask != nil {
		return c.overrideTask
	}
	if cur := c.currentTaskLocked(); cur != nil {
		return cur
	}
	return c.transientTask
}

// CurrentTaskIndex returns the current index into tasks, or nil.
func (c *Core) CurrentTaskIndex() *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentIdx == nil {
		return nil
	}
	idx := *c.currentIdx
	return &idx
}

func findTaskIndex(tasks []*task.Task, target *task.Task) int {
	if target == nil {
		return -1
	}
	for i, t := range tasks {
		if t == target {
			return i
		}
	}
	return -1
}

func intPtr(i int) *int { return &i }

// NextTask implements the task-advancement policy from spec.md §4.5.
func (c *Core) NextTask(vehicle VehiclePositioner) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Step 1: override acceptance.
	if c.pending != nil && c.pending.Kind == command.PendingDoOverride {
		if cur := c.currentTaskLocked(); cur != nil && cur.Kind == task.KindMissionPlan {
			cur.CurrentPath = nil
		}
		c.savedTask = c.currentTaskLocked()
		c.pending = nil
		return
	}

	// Step 2: override dismissal.
	if c.overrideTask != nil {
		idx := findTaskIndex(c.tasks, c.savedTask)
		switch {
		case idx >= 0:
			c.currentIdx = intPtr(idx)
		case len(c.tasks) > 0:
			c.currentIdx = intPtr(0)
		default:
			c.currentIdx = nil
		}
		c.overrideTask = nil
		c.savedTask = nil
		if c.pending != nil && c.pending.Kind == command.PendingNextTask {
			c.pending = nil
			return
		}
	}

	// Step 3: restart_mission.
	if c.pending != nil && c.pending.Kind == command.PendingRestartMission && len(c.tasks) > 0 {
		for _, t := range c.tasks {
			if t.Kind == task.KindMissionPlan {
				t.InvalidateIndex()
			}
		}
		c.currentIdx = intPtr(0)
		c.transientTask = nil
	}

	// Step 4: next_task / prev_task.
	if c.pending != nil && (c.pending.Kind == command.PendingNextTask || c.pending.Kind == command.PendingPrevTask) && len(c.tasks) > 0 {
		step := 1
		if c.pending.Kind == command.PendingPrevTask {
			step = -1
		}
		switch {
		case c.currentIdx == nil:
			if step == 1 {
				c.currentIdx = intPtr(0)
			} else {
				c.currentIdx = intPtr(len(c.tasks) - 1)
			}
			c.transientTask = nil
		default:
			newIdx := *c.currentIdx + step
			if newIdx < 0 || newIdx >= len(c.tasks) {
				switch c.cfg.DoneBehavior {
				case DoneRestart:
					c.currentIdx = intPtr(0)
					c.transientTask = nil
				case DoneHover:
					c.currentIdx = nil
					if pt, ok := vehicle.CurrentPoint(); ok {
						c.transientTask = task.NewHover(pt, c.cfg.DefaultSpeedMps)
					} else {
						c.transientTask = nil
					}
				}
			} else {
				c.currentIdx = intPtr(newIdx)
				c.transientTask = nil
			}
		}
		if cur := c.currentTaskLocked(); cur != nil && cur.Kind == task.KindMissionPlan {
			cur.InvalidateIndex()
		}
	}

	// goto_task N: jump directly to a task-list index.
	if c.pending != nil && c.pending.Kind == command.PendingGotoTask && len(c.tasks) > 0 {
		n := c.pending.N
		if n >= 0 && n < len(c.tasks) {
			c.currentIdx = intPtr(n)
			c.transientTask = nil
			if cur := c.currentTaskLocked(); cur != nil && cur.Kind == task.KindMissionPlan {
				cur.InvalidateIndex()
			}
		} else {
			c.log.Errorw("goto_task index out of range", "n", n, "tasks", len(c.tasks))
		}
	}

	// Step 5: goto_line / start_line.
	if c.pending != nil && (c.pending.Kind == command.PendingGotoLine || c.pending.Kind == command.PendingStartLine) {
		cur := c.currentTaskLocked()
		if cur != nil && cur.Kind == task.KindMissionPlan && c.pending.N >= 0 && c.pending.N < len(cur.NavObjectives) {
			n := c.pending.N
			cur.CurrentIndex = &n
			cur.InvalidatePaths()
			cur.DoTransit = c.pending.Kind == command.PendingStartLine
		} else {
			c.log.Errorw("goto_line/start_line index out of range, mission plan unchanged",
				"n", c.pending.N)
		}
	}

	// Step 6: clear pending_command.
	c.pending = nil
}

// WaypointReached reports whether the vehicle is within waypoint_threshold_m
// of target, per spec.md §4.5.
func (c *Core) WaypointReached(vehicle DistanceBearer, target geo.Point) bool {
	meters, _, ok := vehicle.DistanceBearingTo(target)
	if !ok {
		return false
	}
	c.mu.Lock()
	threshold := c.cfg.WaypointThresholdM
	c.mu.Unlock()
	return meters < threshold
}

// Config returns a copy of the core's configuration.
func (c *Core) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Snapshot builds the status heartbeat snapshot for the given state name.
func (c *Core) Snapshot(stateName string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	labels := make([]string, len(c.tasks))
	for i, t := range c.tasks {
		labels[i] = t.QueueLabel()
	}

	snap := Snapshot{
		StateName:   stateName,
		TasksCount:  len(c.tasks),
		QueueLabels: labels,
	}

	cur := c.overrideTask
	if cur == nil {
		cur = c.currentTaskLocked()
	}
	if cur == nil {
		cur = c.transientTask
	}
	if cur != nil {
		snap.HasCurrentTask = true
		snap.CurrentTaskType = cur.Kind.String()
		if cur.Kind == task.KindMissionPlan {
			snap.CurrentTaskLabel = cur.Label
			snap.CurrentTaskNavObjectiveCount = len(cur.NavObjectives)
			if cur.CurrentIndex != nil {
				idx := *cur.CurrentIndex
				snap.CurrentTaskNavObjectiveIndex = &idx
			}
		}
	}
	return snap
}

// Iterate is the cooperative scheduling point consumed once per tick by
// every active executor state, per spec.md §4.5.
func (c *Core) Iterate(ctx context.Context, stateName string) Outcome {
	if ctx.Err() != nil {
		return OutcomeExit
	}
	if c.PilotingMode().Kind != ModeAutonomous {
		return OutcomePause
	}
	if c.HasPendingCommand() {
		// A command is pending: the state must unwind so NextTask can
		// consume it on the following tick.
		c.log.Debugw("command pending, unwinding state", "state", stateName)
		return OutcomeCancelled
	}

	c.mu.Lock()
	sink := c.statusSink
	c.mu.Unlock()
	if sink != nil {
		sink.PublishHeartbeat(c.Snapshot(stateName))
	}

	select {
	case <-ctx.Done():
		return OutcomeExit
	case <-time.After(c.tickInterval()):
	}
	return OutcomeNone
}

func (c *Core) tickInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.TickInterval <= 0 {
		return 100 * time.Millisecond
	}
	return c.cfg.TickInterval
}
