package missioncore_test

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/bluewater-robotics/missionexec/command"
	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/task"
)

type fakeVehicle struct {
	point geo.Point
	ok    bool
}

func (f fakeVehicle) CurrentPoint() (geo.Point, bool) { return f.point, f.ok }

func (f fakeVehicle) DistanceBearingTo(target geo.Point) (float64, float64, bool) {
	if !f.ok {
		return 0, 0, false
	}
	return geo.GreatCircleDistanceMeters(f.point, target), geo.BearingDegNED(f.point, target), true
}

func testConfig() missioncore.Config {
	cfg := missioncore.DefaultConfig()
	cfg.WaypointThresholdM = 5
	cfg.DefaultSpeedMps = 2
	cfg.TickInterval = time.Millisecond
	return cfg
}

func TestApplyReplaceTasksResetsIndex(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	g := task.NewGoto(geo.Point{LatDeg: 1, LonDeg: 1}, 1)
	core.Apply(&command.Action{Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g}})
	test.That(t, len(core.Tasks()), test.ShouldEqual, 1)
	test.That(t, core.CurrentTaskIndex(), test.ShouldBeNil)
}

func TestNextTaskAdvancesThroughList(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	g1 := task.NewGoto(geo.Point{LatDeg: 1}, 1)
	g2 := task.NewGoto(geo.Point{LatDeg: 2}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g1, g2},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{point: geo.Point{}, ok: true}

	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)

	core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g2)
}

func TestNextTaskDoneHoverSynthesizesTransient(t *testing.T) {
	cfg := testConfig()
	cfg.DoneBehavior = missioncore.DoneHover
	core := missioncore.New(cfg, logging.NewTest())
	g1 := task.NewGoto(geo.Point{LatDeg: 1}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g1},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{point: geo.Point{LatDeg: 9, LonDeg: 9}, ok: true}
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)

	core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
	core.NextTask(v)
	cur := core.GetCurrentTask()
	test.That(t, cur, test.ShouldNotBeNil)
	test.That(t, cur.Kind, test.ShouldEqual, task.KindHover)
	test.That(t, cur.Target, test.ShouldResemble, v.point)
}

func TestNextTaskDoneRestartWrapsAround(t *testing.T) {
	cfg := testConfig()
	cfg.DoneBehavior = missioncore.DoneRestart
	core := missioncore.New(cfg, logging.NewTest())
	g1 := task.NewGoto(geo.Point{LatDeg: 1}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g1},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{ok: true}
	core.NextTask(v)
	core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)
}

func TestOverrideInstallAndDismiss(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	g1 := task.NewGoto(geo.Point{LatDeg: 1}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g1},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{ok: true}
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)

	override := task.NewGoto(geo.Point{LatDeg: 99}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbInstallOverride, OverrideTask: override,
		Pending: &command.Pending{Kind: command.PendingDoOverride},
	})
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, override)

	core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
	core.NextTask(v)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)
}

func TestPrependShiftsCurrentIndex(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	g1 := task.NewGoto(geo.Point{LatDeg: 1}, 1)
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{g1},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	v := fakeVehicle{ok: true}
	core.NextTask(v)
	test.That(t, *core.CurrentTaskIndex(), test.ShouldEqual, 0)

	g0 := task.NewGoto(geo.Point{LatDeg: 0}, 1)
	core.Apply(&command.Action{Verb: command.VerbPrependTasks, Tasks: []*task.Task{g0}})
	test.That(t, *core.CurrentTaskIndex(), test.ShouldEqual, 1)
	test.That(t, core.GetCurrentTask(), test.ShouldEqual, g1)
}

func TestWaypointReached(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	target := geo.Point{LatDeg: 0, LonDeg: 0}
	near := fakeVehicle{point: geo.Point{LatDeg: 0.00001, LonDeg: 0}, ok: true}
	far := fakeVehicle{point: geo.Point{LatDeg: 1, LonDeg: 1}, ok: true}
	test.That(t, core.WaypointReached(near, target), test.ShouldBeTrue)
	test.That(t, core.WaypointReached(far, target), test.ShouldBeFalse)
}

func TestIteratePausedOutsideAutonomous(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	core.SetPilotingMode(missioncore.PilotingMode{Kind: missioncore.ModeStandby})
	outcome := core.Iterate(context.Background(), "idle")
	test.That(t, outcome, test.ShouldEqual, missioncore.OutcomePause)
}

func TestIterateCancelledOnPendingCommand(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	core.SetPilotingMode(missioncore.PilotingMode{Kind: missioncore.ModeAutonomous})
	core.Apply(&command.Action{Pending: &command.Pending{Kind: command.PendingNextTask}})
	outcome := core.Iterate(context.Background(), "idle")
	test.That(t, outcome, test.ShouldEqual, missioncore.OutcomeCancelled)
}

func TestIterateExitsOnCancelledContext(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	core.SetPilotingMode(missioncore.PilotingMode{Kind: missioncore.ModeAutonomous})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := core.Iterate(ctx, "idle")
	test.That(t, outcome, test.ShouldEqual, missioncore.OutcomeExit)
}

func TestSnapshotReflectsMissionPlanObjectiveIndex(t *testing.T) {
	core := missioncore.New(testConfig(), logging.NewTest())
	mp := task.NewMissionPlan("survey", 1, []task.NavObjective{
		{Kind: task.ObjectiveTrackLine, Waypoints: []geo.Point{{LatDeg: 1}}},
	})
	core.Apply(&command.Action{
		Verb: command.VerbReplaceTasks, Tasks: []*task.Task{mp},
		Pending: &command.Pending{Kind: command.PendingNextTask},
	})
	core.NextTask(fakeVehicle{ok: true})
	// NextTask clears the index of a mission plan it makes current, so the
	// objective index is set afterwards, as MissionPlan would.
	zero := 0
	mp.CurrentIndex = &zero
	snap := core.Snapshot("mission_plan")
	test.That(t, snap.HasCurrentTask, test.ShouldBeTrue)
	test.That(t, snap.CurrentTaskLabel, test.ShouldEqual, "survey")
	test.That(t, snap.CurrentTaskNavObjectiveCount, test.ShouldEqual, 1)
	test.That(t, *snap.CurrentTaskNavObjectiveIndex, test.ShouldEqual, 0)
}
