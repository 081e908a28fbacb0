// Package executor implements the executor state machine (C6): driving the
// mission core through Pause/Idle/NextTask/Hover/MissionPlan/Goto/
// FollowPath/LineEnded/SurveyArea, invoking motion backends through the
// action contract from spec.md §6.6.
package executor

import (
	"context"
	"time"

	"github.com/bluewater-robotics/missionexec/geo"
)

// TimestampedPose is one pose in a FollowPath goal, timestamped relative to
// goal dispatch, per spec.md §6.6.
type TimestampedPose struct {
	Pose      geo.Pose
	OffsetSec float64
}

// FollowPathGoal is the Follower/Planner backend goal shape.
type FollowPathGoal struct {
	Poses []TimestampedPose
	Speed float32
}

// HoverGoal is the Hover backend goal shape.
type HoverGoal struct {
	Target geo.Point
}

// SurveyAreaGoal is the SurveyArea backend goal shape: a boundary polygon
// plus a scalar speed.
type SurveyAreaGoal struct {
	Boundary []geo.Point
	Speed    float32
}

// GoalResult is the outcome reported by a Handle once a goal finishes.
// Per spec.md §7, a reported failure is treated identically to success: the
// executor is the orchestrator, not the fault handler.
type GoalResult struct {
	Feedback interface{}
}

// Handle represents one in-flight goal on a backend. The state polls it
// each tick rather than blocking on a callback, per spec.md §9's
// callback-driven-backends design note.
type Handle interface {
	// Done returns a channel closed once the goal has finished (success or
	// reported failure; both are completion per spec.md §7).
	Done() <-chan struct{}
	// Result returns the goal's result; valid only after Done is closed.
	Result() GoalResult
	// Cancel requests cancellation of the outstanding goal.
	Cancel()
}

// Backend is the action contract from spec.md §6.6: send_goal, cancel_goal,
// wait_for_server.
type Backend interface {
	// WaitForServer blocks until the backend is reachable or ctx's deadline
	// elapses, returning false on timeout.
	WaitForServer(ctx context.Context) bool
	// Start sends a goal and returns a Handle to poll/cancel it.
	Start(ctx context.Context, goal interface{}) (Handle, error)
	// CancelGoal cancels whatever goal is currently outstanding on this
	// backend, a no-op if none is. Exposed on the backend itself (rather
	// than only on Handle) so FollowPath's "cancel the other backend
	// defensively" selection can reach a backend it never held a Handle
	// for, per spec.md §4.6.5/§5.
	CancelGoal(ctx context.Context) error
}

// DefaultBackendConnectTimeout is the 2s backend-connect bound from spec.md §5/§6.6.
const DefaultBackendConnectTimeout = 2 * time.Second
