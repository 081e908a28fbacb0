// Package pathbuilder implements the path-construction policy (C2):
// preferring a grid-planner service, falling back to a Dubins service,
// falling back to an empty path. Neither service's wire form is specified
// here (spec.md §1 Deliberately out of scope); both are narrow interfaces a
// caller supplies a concrete client for.
package pathbuilder

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
)

// errNoPlan is never returned to callers of Generate; an exhausted ladder
// yields an empty path, per spec.md §4.2 step 3. It is kept for logging.
var errNoPlan = errors.New("no path service answered within the probe window")

// GridPlanner is the first rung of the path-construction ladder.
type GridPlanner struct {
	// Plan requests a plan between two geographic poses and returns a
	// geographic pose sequence. Implementations should respect ctx's
	// deadline.
	Plan func(ctx context.Context, start, goal geo.Pose) ([]geo.Pose, error)
}

// DubinsService is the second rung of the path-construction ladder.
type DubinsService struct {
	// Plan requests a minimum-turn-radius curve between oriented poses,
	// sampled every samplingInterval meters.
	Plan func(ctx context.Context, radius, samplingInterval float64, start, target geo.Pose) ([]geo.Pose, error)
}

// Config holds the builder's tunables, sourced from the mission core's
// configuration (turn_radius_m, segment_length_m) and the service probe
// timeout (500 ms per spec.md §4.2/§5).
type Config struct {
	TurnRadiusM    float64
	SegmentLengthM float64
	ServiceProbe   time.Duration // default 500ms
}

// Builder is the C2 path builder.
type Builder struct {
	cfg    Config
	grid   *GridPlanner
	dubins *DubinsService
	log    logging.Logger
}

// New constructs a Builder. Either grid or dubins (or both) may be nil,
// meaning that rung of the ladder is unavailable and is skipped.
func New(cfg Config, grid *GridPlanner, dubins *DubinsService, log logging.Logger) *Builder {
	if cfg.ServiceProbe <= 0 {
		cfg.ServiceProbe = 500 * time.Millisecond
	}
	return &Builder{cfg: cfg, grid: grid, dubins: dubins, log: log.Named("pathbuilder")}
}

// Generate implements the three-rung ladder described in spec.md §4.2.
func (b *Builder) Generate(ctx context.Context, start, target geo.Pose) []geo.Pose {
	if b.grid != nil && b.grid.Plan != nil {
		probeCtx, cancel := context.WithTimeout(ctx, b.cfg.ServiceProbe)
		poses, err := b.grid.Plan(probeCtx, start, target)
		cancel()
		if err == nil && len(poses) > 0 {
			return poses
		}
		b.log.Debugw("grid planner unavailable, falling back to dubins", "err", err)
	}

	if b.dubins != nil && b.dubins.Plan != nil {
		probeCtx, cancel := context.WithTimeout(ctx, b.cfg.ServiceProbe)
		poses, err := b.dubins.Plan(probeCtx, b.cfg.TurnRadiusM, b.cfg.SegmentLengthM, start, target)
		cancel()
		if err == nil && len(poses) > 0 {
			return poses
		}
		b.log.Debugw("dubins service unavailable, returning empty path", "err", err)
	}

	b.log.Debugw("path ladder exhausted", "err", errNoPlan)
	return nil
}

// VehiclePoser supplies the vehicle's current pose for GenerateFromVehicle.
type VehiclePoser interface {
	CurrentPose() (geo.Pose, bool)
}

// GenerateFromVehicle reads the vehicle's current pose and forwards to
// Generate. Returns nil if the vehicle has no current pose (no fix yet).
func (b *Builder) GenerateFromVehicle(ctx context.Context, vehicle VehiclePoser, target geo.Pose) []geo.Pose {
	start, ok := vehicle.CurrentPose()
	if !ok {
		b.log.Debugw("no vehicle pose available, cannot build path")
		return nil
	}
	return b.Generate(ctx, start, target)
}
