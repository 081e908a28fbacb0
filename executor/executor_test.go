package executor_test

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/bluewater-robotics/missionexec/command"
	"github.com/bluewater-robotics/missionexec/executor"
	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/pathbuilder"
	"github.com/bluewater-robotics/missionexec/task"
)

type fakeVehicle struct {
	pose  geo.Pose
	point geo.Point
	ok    bool
}

func (f fakeVehicle) CurrentPose() (geo.Pose, bool)   { return f.pose, f.ok }
func (f fakeVehicle) CurrentPoint() (geo.Point, bool) { return f.point, f.ok }
func (f fakeVehicle) DistanceBearingTo(target geo.Point) (float64, float64, bool) {
	if !f.ok {
		return 0, 0, false
	}
	return geo.GreatCircleDistanceMeters(f.point, target), geo.BearingDegNED(f.point, target), true
}

type fakeHandle struct {
	done chan struct{}
}

func newFakeHandle() *fakeHandle { return &fakeHandle{done: make(chan struct{})} }

func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Result() executor.GoalResult { return executor.GoalResult{} }
func (h *fakeHandle) Cancel()                     { close(h.done) }

type fakeBackend struct {
	reachable bool
	// handle, if set, is returned from every Start call (tests that only
	// ever expect a single goal dispatch).
	handle   *fakeHandle
	startErr error
	started  chan struct{}
	// handles receives every newly-created handle, for tests that dispatch
	// more than one goal and need a fresh, independently cancellable
	// handle each time, mirroring how a real backend issues a new goal ID
	// per Start call.
	handles chan *fakeHandle
}

func (b *fakeBackend) WaitForServer(ctx context.Context) bool { return b.reachable }
func (b *fakeBackend) Start(ctx context.Context, goal interface{}) (executor.Handle, error) {
	if b.startErr != nil {
		return nil, b.startErr
	}
	if b.started != nil {
		select {
		case b.started <- struct{}{}:
		default:
		}
	}
	if b.handles != nil {
		h := newFakeHandle()
		b.handles <- h
		return h, nil
	}
	return b.handle, nil
}
func (b *fakeBackend) CancelGoal(ctx context.Context) error { return nil }

type fakeEOL struct {
	signals []string
}

func (e *fakeEOL) PublishEndOfLine(signal string) { e.signals = append(e.signals, signal) }

func testCore() *missioncore.Core {
	cfg := missioncore.DefaultConfig()
	cfg.WaypointThresholdM = 1
	cfg.TickInterval = time.Millisecond
	cfg.DefaultSpeedMps = 1
	core := missioncore.New(cfg, logging.NewTest())
	core.SetPilotingMode(missioncore.PilotingMode{Kind: missioncore.ModeAutonomous})
	return core
}

func TestRunGotoReachesTargetThenHoversOnDoneHover(t *testing.T) {
	core := testCore()
	target := geo.Point{LatDeg: 1, LonDeg: 1}
	g := task.NewGoto(target, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{point: target, pose: geo.Pose{Point: target}, ok: true}
	core.NextTask(v)

	// Reaching the goto target with only one task queued and the default
	// Hover done-behavior synthesizes a transient Hover once the goto's
	// completion is consumed; the transient Hover then dispatches to the
	// hover backend, which this test observes directly rather than racing
	// on the core's transient internal state.
	backend := &fakeBackend{reachable: true, handle: newFakeHandle(), started: make(chan struct{}, 1)}
	paths := pathbuilder.New(pathbuilder.Config{ServiceProbe: time.Millisecond}, nil, nil, logging.NewTest())
	exec := executor.New(core, v, paths, executor.Backends{Hover: backend}, &fakeEOL{}, logging.NewTest())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go exec.Run(ctx)

	select {
	case <-backend.started:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for the hover backend to receive the synthesized goal")
	}
}

func TestRunHoverDispatchesToBackend(t *testing.T) {
	core := testCore()
	target := geo.Point{LatDeg: 5, LonDeg: 5}
	h := task.NewHover(target, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{h},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{point: target, pose: geo.Pose{Point: target}, ok: true}
	core.NextTask(v)

	backend := &fakeBackend{reachable: true, handles: make(chan *fakeHandle, 8)}
	paths := pathbuilder.New(pathbuilder.Config{ServiceProbe: time.Millisecond}, nil, nil, logging.NewTest())
	exec := executor.New(core, v, paths, executor.Backends{Hover: backend}, &fakeEOL{}, logging.NewTest())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		exec.Run(ctx)
		close(done)
	}()

	select {
	case h := <-backend.handles:
		h.Cancel() // simulate the backend reporting completion
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for a hover goal to be dispatched")
	}
	cancel()
	<-done
}

// TestMissionPlanLineupGeometry drives a trackline objective through
// runMissionPlan's line-up construction: first waypoint (43.0,-70.0) heading
// east, vehicle 100m north of it, lineup_distance=25m, planner=Follower. The
// resulting transit path's last point must be the first waypoint, its first
// point ~25m due west of the first waypoint, with a non-empty run of
// intermediates supplied by the grid planner in between.
func TestMissionPlanLineupGeometry(t *testing.T) {
	core := testCore()
	first := geo.Point{LatDeg: 43.0, LonDeg: -70.0}
	second := geo.DirectGeodesic(first, 90, 1000)
	mp := task.NewMissionPlan("survey", 1, []task.NavObjective{
		{Kind: task.ObjectiveTrackLine, Waypoints: []geo.Point{first, second}},
	})
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{mp},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})

	vehiclePoint := geo.DirectGeodesic(first, 0, 100)
	v := fakeVehicle{point: vehiclePoint, pose: geo.Pose{Point: vehiclePoint}, ok: true}
	core.NextTask(v)

	grid := &pathbuilder.GridPlanner{
		Plan: func(ctx context.Context, start, goal geo.Pose) ([]geo.Pose, error) {
			return []geo.Pose{goal, {Point: geo.DirectGeodesic(goal.Point, goal.HeadingDegNED, 5)}}, nil
		},
	}
	paths := pathbuilder.New(pathbuilder.Config{ServiceProbe: time.Millisecond}, grid, nil, logging.NewTest())

	backend := &fakeBackend{reachable: true, handle: newFakeHandle(), started: make(chan struct{}, 1)}
	exec := executor.New(core, v, paths, executor.Backends{Follower: backend}, &fakeEOL{}, logging.NewTest())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	done := make(chan struct{})
	go func() {
		exec.Run(ctx)
		close(done)
	}()

	select {
	case <-backend.started:
	case <-time.After(500 * time.Millisecond):
		cancel()
		t.Fatal("timed out waiting for the follower backend to receive the track-line goal")
	}
	cancel()
	<-done

	transit := mp.TransitPath
	test.That(t, len(transit), test.ShouldBeGreaterThan, 2)
	last := transit[len(transit)-1]
	test.That(t, last.Point.LatDeg, test.ShouldAlmostEqual, first.LatDeg, 1e-9)
	test.That(t, last.Point.LonDeg, test.ShouldAlmostEqual, first.LonDeg, 1e-9)

	leadDistance := geo.GreatCircleDistanceMeters(first, transit[0].Point)
	test.That(t, leadDistance, test.ShouldAlmostEqual, 25.0, 0.5)
	leadBearing := geo.BearingDegNED(first, transit[0].Point)
	test.That(t, leadBearing, test.ShouldAlmostEqual, 270.0, 1.0)

	test.That(t, mp.CurrentPath, test.ShouldNotBeNil)
	test.That(t, len(mp.CurrentPath), test.ShouldEqual, 2)
}
