package pathbuilder_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/pathbuilder"
)

func cfg() pathbuilder.Config {
	return pathbuilder.Config{TurnRadiusM: 5, SegmentLengthM: 1, ServiceProbe: 20 * time.Millisecond}
}

func TestGenerateUsesGridWhenAvailable(t *testing.T) {
	grid := &pathbuilder.GridPlanner{
		Plan: func(ctx context.Context, start, goal geo.Pose) ([]geo.Pose, error) {
			return []geo.Pose{start, goal}, nil
		},
	}
	b := pathbuilder.New(cfg(), grid, nil, logging.NewTest())
	poses := b.Generate(context.Background(), geo.Pose{}, geo.Pose{Point: geo.Point{LatDeg: 1}})
	test.That(t, len(poses), test.ShouldEqual, 2)
}

func TestGenerateFallsBackToDubinsOnGridError(t *testing.T) {
	grid := &pathbuilder.GridPlanner{
		Plan: func(ctx context.Context, start, goal geo.Pose) ([]geo.Pose, error) {
			return nil, errors.New("grid down")
		},
	}
	dubins := &pathbuilder.DubinsService{
		Plan: func(ctx context.Context, radius, seg float64, start, target geo.Pose) ([]geo.Pose, error) {
			return []geo.Pose{start, target}, nil
		},
	}
	b := pathbuilder.New(cfg(), grid, dubins, logging.NewTest())
	poses := b.Generate(context.Background(), geo.Pose{}, geo.Pose{Point: geo.Point{LatDeg: 1}})
	test.That(t, len(poses), test.ShouldEqual, 2)
}

func TestGenerateReturnsEmptyWhenLadderExhausted(t *testing.T) {
	b := pathbuilder.New(cfg(), nil, nil, logging.NewTest())
	poses := b.Generate(context.Background(), geo.Pose{}, geo.Pose{Point: geo.Point{LatDeg: 1}})
	test.That(t, len(poses), test.ShouldEqual, 0)
}

func TestGenerateFromVehicleNoPose(t *testing.T) {
	b := pathbuilder.New(cfg(), nil, nil, logging.NewTest())
	poses := b.GenerateFromVehicle(context.Background(), noPoseVehicle{}, geo.Pose{})
	test.That(t, poses, test.ShouldBeNil)
}

type noPoseVehicle struct{}

func (noPoseVehicle) CurrentPose() (geo.Pose, bool) { return geo.Pose{}, false }
