// Package status implements the status publisher (C7): periodic heartbeat
// snapshots (spec.md §6.3), the mission_manager visualization layer
// (spec.md §6.4), and the end-of-line signal (spec.md §6.5).
package status

import (
	"strconv"

	"github.com/bluewater-robotics/missionexec/geo"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/task"
	"github.com/bluewater-robotics/missionexec/transport"
)

// KV is one key-value entry of a heartbeat message.
type KV struct {
	Key   string
	Value string
}

// Heartbeat is the §6.3 heartbeat message: an ordered list of key-value
// entries ("state", "tasks_count", one "-task" per queued task, and the
// current-task keys when a current task exists).
type Heartbeat struct {
	Entries []KV
}

// Polyline is an ordered list of geographic points.
type Polyline struct {
	Points []geo.Point
}

// ObjectiveLayer is one mission-plan objective's rendering: a grey transit
// polyline and a magenta track polyline, per spec.md §6.4.
type ObjectiveLayer struct {
	Transit Polyline // grey
	Track   Polyline // magenta
}

// VisualizationLayer is the named geometric layer published on the
// visualization channel.
type VisualizationLayer struct {
	Name       string
	Objectives []ObjectiveLayer
}

// Publisher is the C7 status publisher. It implements missioncore.StatusSink
// so the executor's iterate tick drives its heartbeat cadence (~10 Hz,
// matching the ~100ms tick interval) without a separate timer.
type Publisher struct {
	core         *missioncore.Core
	heartbeatBus *transport.Bus[Heartbeat]
	vizBus       *transport.Bus[VisualizationLayer]
	endOfLineBus *transport.Bus[string]
}

// NewPublisher constructs a Publisher wired to the given core and buses.
func NewPublisher(
	core *missioncore.Core,
	heartbeatBus *transport.Bus[Heartbeat],
	vizBus *transport.Bus[VisualizationLayer],
	endOfLineBus *transport.Bus[string],
) *Publisher {
	return &Publisher{core: core, heartbeatBus: heartbeatBus, vizBus: vizBus, endOfLineBus: endOfLineBus}
}

// PublishHeartbeat implements missioncore.StatusSink.
func (p *Publisher) PublishHeartbeat(snap missioncore.Snapshot) {
	p.heartbeatBus.Publish(buildHeartbeat(snap))
	p.vizBus.Publish(BuildVisualization(p.core.Tasks(), p.core.Config().LineupDistanceM))
}

// PublishEndOfLine implements executor.EndOfLineSink.
func (p *Publisher) PublishEndOfLine(signal string) {
	p.endOfLineBus.Publish(signal)
}

func buildHeartbeat(snap missioncore.Snapshot) Heartbeat {
	entries := []KV{
		{Key: "state", Value: snap.StateName},
		{Key: "tasks_count", Value: strconv.Itoa(snap.TasksCount)},
	}
	for _, label := range snap.QueueLabels {
		entries = append(entries, KV{Key: "-task", Value: label})
	}
	if snap.HasCurrentTask {
		entries = append(entries, KV{Key: "current_task_type", Value: snap.CurrentTaskType})
		if snap.CurrentTaskType == task.KindMissionPlan.String() {
			entries = append(entries,
				KV{Key: "current_task_label", Value: snap.CurrentTaskLabel},
				KV{Key: "current_task_nav_objective_count", Value: strconv.Itoa(snap.CurrentTaskNavObjectiveCount)},
			)
			if snap.CurrentTaskNavObjectiveIndex != nil {
				entries = append(entries, KV{
					Key:   "current_task_nav_objective_index",
					Value: strconv.Itoa(*snap.CurrentTaskNavObjectiveIndex),
				})
			}
		}
	}
	return Heartbeat{Entries: entries}
}

// BuildVisualization renders the mission_manager layer from the current
// task list, per spec.md §6.4. The "projected prior endpoint" for the
// first objective of a plan is omitted (there is no prior segment to
// project from); later objectives use the previous objective's last
// waypoint.
func BuildVisualization(tasks []*task.Task, lineupDistanceM float64) VisualizationLayer {
	layer := VisualizationLayer{Name: "mission_manager"}
	for _, t := range tasks {
		if t.Kind != task.KindMissionPlan {
			continue
		}
		var prevEnd *geo.Point
		for _, obj := range t.NavObjectives {
			if obj.Kind != task.ObjectiveTrackLine || len(obj.Waypoints) == 0 {
				if obj.Kind == task.ObjectiveSurveyArea && len(obj.Boundary) > 0 {
					last := obj.Boundary[len(obj.Boundary)-1]
					prevEnd = &last
				}
				continue
			}

			first := obj.Waypoints[0]
			heading := 0.0
			if len(obj.Waypoints) >= 2 {
				heading = geo.HeadingBetween(first, obj.Waypoints[1])
			}
			lineup := geo.DirectGeodesic(first, geo.AddHeading(heading, 180), lineupDistanceM)

			var transitPts []geo.Point
			if prevEnd != nil {
				transitPts = append(transitPts, *prevEnd)
			}
			transitPts = append(transitPts, lineup, first)

			track := append([]geo.Point{}, obj.Waypoints...)
			layer.Objectives = append(layer.Objectives, ObjectiveLayer{
				Transit: Polyline{Points: transitPts},
				Track:   Polyline{Points: track},
			})

			last := obj.Waypoints[len(obj.Waypoints)-1]
			prevEnd = &last
		}
	}
	return layer
}
