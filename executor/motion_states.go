package executor

import (
	"context"
	"time"

	"github.com/bluewater-robotics/missionexec/command"
	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/task"
)

// setPendingNextTask deposits a synthetic next_task command, the mechanism
// by which a one-shot state (Goto reaching its target, a mission plan
// running off its objective list) hands control back to NextTask so the
// top-level current-task pointer actually advances.
func (e *Executor) setPendingNextTask() {
	e.core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
}

// checkTick runs one cooperative iterate tick and translates a non-None
// outcome into the state it routes to, following the pause/exit/cancelled
// routing of the Autonomous row in spec.md §4.6's state table. runHover
// calls it before building a transit path toward a not-yet-reached target;
// Goto and MissionPlan do their one-shot work without it.
func (e *Executor) checkTick(ctx context.Context, name string) (stateID, bool) {
	switch e.core.Iterate(ctx, name) {
	case missioncore.OutcomePause:
		return statePause, true
	case missioncore.OutcomeExit:
		return stateExit, true
	case missioncore.OutcomeCancelled:
		return stateNextTask, true
	default:
		return stateInit, false
	}
}

// headingToward returns the bearing from the vehicle to target, falling
// back to the vehicle's current heading if no fix/bearing is available.
func (e *Executor) headingToward(target geo.Point, fallback float64) float64 {
	if _, brg, ok := e.vehicle.DistanceBearingTo(target); ok {
		return brg
	}
	return fallback
}

// runGoto implements spec.md §4.6.1.
func (e *Executor) runGoto(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil || cur.Kind != task.KindGoto {
		return stateNextTask
	}
	if e.core.WaypointReached(e.vehicle, cur.Target) {
		e.setPendingNextTask()
		return stateNextTask
	}

	start, ok := e.vehicle.CurrentPose()
	if !ok {
		// No fix yet; retry next tick per spec.md §7.
		select {
		case <-ctx.Done():
			return stateExit
		case <-time.After(e.tickInterval()):
		}
		return stateGoto
	}
	heading := e.headingToward(cur.Target, start.HeadingDegNED)
	targetPose := geo.Pose{Point: cur.Target, HeadingDegNED: heading}

	path := e.paths.Generate(ctx, start, targetPose)
	cfg := e.core.Config()
	cur.Path = path
	cur.PathKind = task.PathKindTransit
	cur.Speed = cfg.DefaultSpeedMps
	if len(path) == 0 {
		e.setPendingNextTask()
		return stateNextTask
	}
	return stateFollowPath
}

// runHover implements spec.md §4.6.2.
func (e *Executor) runHover(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil || cur.Kind != task.KindHover {
		return stateNextTask
	}

	if !e.core.WaypointReached(e.vehicle, cur.Target) {
		if next, stop := e.checkTick(ctx, stateHover.String()); stop {
			return next
		}
		start, ok := e.vehicle.CurrentPose()
		if !ok {
			return stateHover
		}
		heading := e.headingToward(cur.Target, start.HeadingDegNED)
		targetPose := geo.Pose{Point: cur.Target, HeadingDegNED: heading}
		path := e.paths.Generate(ctx, start, targetPose)
		cfg := e.core.Config()
		cur.Path = path
		cur.PathKind = task.PathKindTransit
		cur.Speed = cfg.DefaultSpeedMps
		if len(path) == 0 {
			e.setPendingNextTask()
			return stateNextTask
		}
		return stateFollowPath
	}

	if e.backends.Hover == nil {
		e.setPendingNextTask()
		return stateNextTask
	}
	connectCtx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	reachable := e.backends.Hover.WaitForServer(connectCtx)
	cancel()
	if !reachable {
		return stateNextTask
	}
	handle, err := e.backends.Hover.Start(ctx, HoverGoal{Target: cur.Target})
	if err != nil {
		e.log.Errorw("hover backend rejected goal", "err", err)
		return stateNextTask
	}
	e.activeHandle, e.activeBackend = handle, e.backends.Hover
	defer func() { e.activeHandle, e.activeBackend = nil, nil }()

	for {
		select {
		case <-handle.Done():
			// The hover backend does not normally self-terminate; treat a
			// reported result as completion per spec.md §7's
			// failure-is-completion rule.
			e.setPendingNextTask()
			return stateNextTask
		default:
		}
		switch e.core.Iterate(ctx, stateHover.String()) {
		case missioncore.OutcomeNone:
			continue
		case missioncore.OutcomePause:
			handle.Cancel()
			return statePause
		case missioncore.OutcomeCancelled:
			handle.Cancel()
			return stateNextTask
		case missioncore.OutcomeExit:
			handle.Cancel()
			return stateExit
		}
	}
}

// runMissionPlan implements spec.md §4.6.3.
func (e *Executor) runMissionPlan(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil || cur.Kind != task.KindMissionPlan {
		return stateNextTask
	}

	if cur.CurrentIndex == nil {
		zero := 0
		cur.CurrentIndex = &zero
	}
	idx := *cur.CurrentIndex
	if idx >= len(cur.NavObjectives) {
		cur.CurrentIndex = nil
		e.setPendingNextTask()
		return stateNextTask
	}

	obj := cur.NavObjectives[idx]
	if obj.Kind == task.ObjectiveSurveyArea {
		return stateSurveyArea
	}

	if cur.CurrentPath == nil {
		e.buildTrackLinePath(ctx, cur, obj)
	}
	return stateFollowPath
}

// buildTrackLinePath constructs current_path and, when called for, the
// line-up transit_path for a TrackLine objective, per spec.md §4.6.3.
func (e *Executor) buildTrackLinePath(ctx context.Context, cur *task.Task, obj task.NavObjective) {
	poses := make([]geo.Pose, len(obj.Waypoints))
	for i, wp := range obj.Waypoints {
		poses[i] = geo.Pose{Point: wp}
	}
	cur.CurrentPath = poses
	cur.TransitPath = nil

	if len(poses) >= 2 {
		first, second := poses[0].Point, poses[1].Point
		heading := geo.HeadingBetween(first, second)
		cfg := e.core.Config()
		reached := e.core.WaypointReached(e.vehicle, first)
		if cur.DoTransit && !reached && cfg.Planner == missioncore.PlannerFollower {
			behindBearing := geo.AddHeading(heading, 180)
			preStart := geo.DirectGeodesic(first, behindBearing, cfg.LineupDistanceM)
			if start, ok := e.vehicle.CurrentPose(); ok {
				lineup := e.paths.Generate(ctx, start, geo.Pose{Point: preStart, HeadingDegNED: heading})
				lineup = append(lineup, geo.Pose{Point: first, HeadingDegNED: heading})
				cur.TransitPath = lineup
			}
		}
	}
	cur.DoTransit = true
}

// runLineEnded implements spec.md §4.6.4, reachable only from FollowPath's
// done outcome.
func (e *Executor) runLineEnded(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil || cur.Kind != task.KindMissionPlan {
		e.setPendingNextTask()
		return stateNextTask
	}

	if cur.TransitPath != nil {
		cur.TransitPath = nil
		e.publishEndOfLine("transit")
	} else {
		cur.CurrentPath = nil
		if cur.CurrentIndex != nil {
			next := *cur.CurrentIndex + 1
			cur.CurrentIndex = &next
		}
		e.publishEndOfLine("track")
	}
	return stateMissionPlan
}

func (e *Executor) publishEndOfLine(signal string) {
	if e.eol != nil {
		e.eol.PublishEndOfLine(signal)
	}
}

// runFollowPath implements spec.md §4.6.5.
func (e *Executor) runFollowPath(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil {
		return stateNextTask
	}
	cfg := e.core.Config()

	backend, other := e.backends.Follower, e.backends.Planner
	if cfg.Planner == missioncore.PlannerPlanner {
		backend, other = e.backends.Planner, e.backends.Follower
	}
	if other != nil {
		if err := other.CancelGoal(ctx); err != nil {
			e.log.Debugw("defensive cancel of idle backend failed", "err", err)
		}
	}

	var path []geo.Pose
	var speed float32
	if cur.Kind == task.KindMissionPlan {
		if cur.TransitPath != nil {
			path = cur.TransitPath
		} else {
			path = cur.CurrentPath
		}
		speed = cur.DefaultSpeed
	} else {
		path = cur.Path
		speed = cur.Speed
	}
	if len(path) == 0 {
		e.setPendingNextTask()
		return stateNextTask
	}
	if backend == nil {
		return stateNextTask
	}

	connectCtx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	reachable := backend.WaitForServer(connectCtx)
	cancel()
	if !reachable {
		return stateNextTask
	}

	goal := buildFollowPathGoal(path, speed)
	handle, err := backend.Start(ctx, goal)
	if err != nil {
		e.log.Errorw("follow-path backend rejected goal", "err", err)
		return stateNextTask
	}
	e.activeHandle, e.activeBackend = handle, backend
	defer func() { e.activeHandle, e.activeBackend = nil, nil }()

	isHover := cur.Kind == task.KindHover
	for {
		select {
		case <-handle.Done():
			if isHover {
				return stateHover
			}
			return stateLineEnded
		default:
		}
		if isHover && e.core.WaypointReached(e.vehicle, cur.Target) {
			handle.Cancel()
			return stateHover
		}
		switch e.core.Iterate(ctx, stateFollowPath.String()) {
		case missioncore.OutcomeNone:
			continue
		case missioncore.OutcomePause:
			handle.Cancel()
			return statePause
		case missioncore.OutcomeCancelled:
			handle.Cancel()
			return stateNextTask
		case missioncore.OutcomeExit:
			handle.Cancel()
			return stateExit
		}
	}
}

func buildFollowPathGoal(path []geo.Pose, speed float32) FollowPathGoal {
	poses := make([]TimestampedPose, len(path))
	for i, p := range path {
		poses[i] = TimestampedPose{Pose: p, OffsetSec: float64(i)}
	}
	return FollowPathGoal{Poses: poses, Speed: speed}
}

// runSurveyArea implements spec.md §4.6.6. On completion it advances the
// mission plan's objective index itself (there is no LineEnded-equivalent
// for survey areas) and routes through NextTask, which re-reads the
// still-current MissionPlan task and dispatches back into MissionPlan for
// the next objective.
func (e *Executor) runSurveyArea(ctx context.Context) stateID {
	cur := e.core.GetCurrentTask()
	if cur == nil || cur.Kind != task.KindMissionPlan {
		return stateNextTask
	}
	obj, ok := cur.CurrentObjective()
	if !ok || obj.Kind != task.ObjectiveSurveyArea {
		return stateNextTask
	}
	if e.backends.SurveyArea == nil {
		return stateNextTask
	}

	connectCtx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	reachable := e.backends.SurveyArea.WaitForServer(connectCtx)
	cancel()
	if !reachable {
		return stateNextTask
	}

	goal := SurveyAreaGoal{Boundary: obj.Boundary, Speed: cur.DefaultSpeed}
	handle, err := e.backends.SurveyArea.Start(ctx, goal)
	if err != nil {
		e.log.Errorw("survey-area backend rejected goal", "err", err)
		return stateNextTask
	}
	e.activeHandle, e.activeBackend = handle, e.backends.SurveyArea
	defer func() { e.activeHandle, e.activeBackend = nil, nil }()

	for {
		select {
		case <-handle.Done():
			if cur.CurrentIndex != nil {
				next := *cur.CurrentIndex + 1
				cur.CurrentIndex = &next
			}
			return stateNextTask
		default:
		}
		switch e.core.Iterate(ctx, stateSurveyArea.String()) {
		case missioncore.OutcomeNone:
			continue
		case missioncore.OutcomePause:
			handle.Cancel()
			return statePause
		case missioncore.OutcomeCancelled:
			handle.Cancel()
			return stateNextTask
		case missioncore.OutcomeExit:
			handle.Cancel()
			return stateExit
		}
	}
}
