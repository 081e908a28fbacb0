package executor

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/pathbuilder"
	"github.com/bluewater-robotics/missionexec/task"
)

// stateID enumerates the executor's states, per spec.md §4.6.
type stateID int

const (
	stateInit stateID = iota
	statePause
	stateIdle
	stateNextTask
	stateMissionPlan
	stateGoto
	stateHover
	stateFollowPath
	stateLineEnded
	stateSurveyArea
	stateExit
)

func (s stateID) String() string {
	switch s {
	case statePause:
		return "pause"
	case stateIdle:
		return "idle"
	case stateNextTask:
		return "next_task"
	case stateMissionPlan:
		return "mission_plan"
	case stateGoto:
		return "goto"
	case stateHover:
		return "hover"
	case stateFollowPath:
		return "follow_path"
	case stateLineEnded:
		return "line_ended"
	case stateSurveyArea:
		return "survey_area"
	case stateExit:
		return "exit"
	default:
		return "init"
	}
}

// Vehicle is everything the executor needs to read from the nav adapter (C1).
type Vehicle interface {
	CurrentPose() (geo.Pose, bool)
	CurrentPoint() (geo.Point, bool)
	DistanceBearingTo(target geo.Point) (meters, bearingDeg float64, ok bool)
}

// EndOfLineSink publishes the §6.5 end-of-line signal ("transit" or "track").
type EndOfLineSink interface {
	PublishEndOfLine(signal string)
}

// Backends bundles the four motion-backend action clients from spec.md §6.6.
type Backends struct {
	Follower   Backend
	Planner    Backend
	Hover      Backend
	SurveyArea Backend
}

// Executor is the C6 executor state machine.
type Executor struct {
	core           *missioncore.Core
	vehicle        Vehicle
	paths          *pathbuilder.Builder
	backends       Backends
	eol            EndOfLineSink
	log            logging.Logger
	connectTimeout time.Duration

	// activeHandle/activeBackend track the single in-flight backend goal,
	// enforced by FollowPath's "cancel the other first" selection.
	activeHandle  Handle
	activeBackend Backend
}

// New constructs an Executor.
func New(
	core *missioncore.Core,
	vehicle Vehicle,
	paths *pathbuilder.Builder,
	backends Backends,
	eol EndOfLineSink,
	log logging.Logger,
) *Executor {
	return &Executor{
		core:           core,
		vehicle:        vehicle,
		paths:          paths,
		backends:       backends,
		eol:            eol,
		log:            log.Named("executor"),
		connectTimeout: DefaultBackendConnectTimeout,
	}
}

// Run drives the state machine until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) {
	state := statePause
	for {
		var next stateID
		switch state {
		case statePause:
			next = e.runPause(ctx)
		case stateIdle:
			next = e.runIdle(ctx)
		case stateNextTask:
			next = e.runNextTask(ctx)
		case stateMissionPlan:
			next = e.runMissionPlan(ctx)
		case stateGoto:
			next = e.runGoto(ctx)
		case stateHover:
			next = e.runHover(ctx)
		case stateFollowPath:
			next = e.runFollowPath(ctx)
		case stateLineEnded:
			next = e.runLineEnded(ctx)
		case stateSurveyArea:
			next = e.runSurveyArea(ctx)
		case stateExit:
			if err := e.cancelAllBackends(ctx); err != nil {
				e.log.Warnw("error cancelling backends on exit", "err", err)
			}
			return
		default:
			next = statePause
		}
		e.log.Debugw("state transition", "from", state.String(), "to", next.String())
		state = next
	}
}

// cancelAllBackends cancels any outstanding goal on every backend,
// combining the individual cancellation errors so shutdown reports the
// full picture rather than stopping at the first failure.
func (e *Executor) cancelAllBackends(ctx context.Context) error {
	var err error
	for _, b := range []Backend{e.backends.Follower, e.backends.Planner, e.backends.Hover, e.backends.SurveyArea} {
		if b == nil {
			continue
		}
		err = multierr.Append(err, b.CancelGoal(ctx))
	}
	return err
}

// runPause polls for a return to Autonomous mode or shutdown. Per spec.md
// §6.3 the status heartbeat is suppressed while in pure Pause, so this loop
// deliberately does not call core.Iterate (which publishes a heartbeat).
func (e *Executor) runPause(ctx context.Context) stateID {
	ticker := time.NewTicker(e.tickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return stateExit
		case <-ticker.C:
			if e.core.PilotingMode().Kind == missioncore.ModeAutonomous {
				return stateIdle
			}
		}
	}
}

// runIdle loops until tasks are available or iterate reports something
// other than None, per spec.md §4.6's Idle row.
func (e *Executor) runIdle(ctx context.Context) stateID {
	for {
		if len(e.core.Tasks()) > 0 {
			return stateNextTask
		}
		switch e.core.Iterate(ctx, stateIdle.String()) {
		case missioncore.OutcomeNone:
			continue
		case missioncore.OutcomePause:
			return statePause
		case missioncore.OutcomeExit:
			return stateExit
		case missioncore.OutcomeCancelled:
			// A command arrived (e.g. clear_tasks, append_task); let
			// NextTask consume it.
			return stateNextTask
		default:
			continue
		}
	}
}

// runNextTask applies the task-advancement policy and dispatches to the
// matching state, or Idle if there is no current task.
func (e *Executor) runNextTask(ctx context.Context) stateID {
	e.core.NextTask(e.vehicle)
	cur := e.core.GetCurrentTask()
	if cur == nil {
		return stateIdle
	}
	switch cur.Kind {
	case task.KindMissionPlan:
		return stateMissionPlan
	case task.KindGoto:
		return stateGoto
	case task.KindHover:
		return stateHover
	default:
		return stateIdle
	}
}

func (e *Executor) tickInterval() time.Duration {
	cfg := e.core.Config()
	if cfg.TickInterval <= 0 {
		return 100 * time.Millisecond
	}
	return cfg.TickInterval
}
