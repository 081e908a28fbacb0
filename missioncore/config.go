package missioncore

import "time"

// PlannerBackend selects which motion backend services FollowPath goals.
type PlannerBackend int

const (
	// PlannerFollower drives the path-follower backend.
	PlannerFollower PlannerBackend = iota
	// PlannerPlanner drives the path-planner backend.
	PlannerPlanner
)

// DoneBehavior selects what happens when task advancement falls off either
// end of the task list.
type DoneBehavior int

const (
	// DoneHover synthesizes a transient hover at the vehicle's position.
	DoneHover DoneBehavior = iota
	// DoneRestart wraps back around to the first task.
	DoneRestart
)

// Config holds the mission core's tunables from spec.md §3/§6.8.
type Config struct {
	WaypointThresholdM float64
	TurnRadiusM        float64
	SegmentLengthM     float64
	DefaultSpeedMps    float32
	Planner            PlannerBackend
	DoneBehavior       DoneBehavior
	LineupDistanceM    float64

	// TickInterval is the ~100ms iterate cooperative scheduling period
	// from spec.md §4.5/§5.
	TickInterval time.Duration
}

// DefaultConfig returns the spec's defaults (lineup_distance_m=25, 100ms tick).
func DefaultConfig() Config {
	return Config{
		LineupDistanceM: 25,
		TickInterval:    100 * time.Millisecond,
	}
}
