// Package diagnostics runs a low-frequency periodic job that logs queue
// depth, piloting mode and whether a command is pending, separate from the
// ~10Hz status heartbeat
// published by the status package.
package diagnostics

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"

	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/missioncore"
)

// DefaultInterval is the default diagnostics cadence, far slower than the
// ~100ms iterate tick driving the heartbeat.
const DefaultInterval = 5 * time.Second

// Job runs the periodic diagnostics report against a mission core.
type Job struct {
	scheduler gocron.Scheduler
	core      *missioncore.Core
	log       logging.Logger
}

// New builds a Job. The caller must call Start to begin scheduling and
// Stop to tear it down.
func New(core *missioncore.Core, log logging.Logger, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "building diagnostics scheduler")
	}
	j := &Job{scheduler: sched, core: core, log: log.Named("diagnostics")}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.report),
	)
	if err != nil {
		return nil, errors.Wrap(err, "scheduling diagnostics job")
	}
	return j, nil
}

// Start begins the periodic diagnostics report in the background.
func (j *Job) Start() {
	j.scheduler.Start()
}

// Stop tears down the scheduler, blocking until the current run (if any)
// finishes or ctx expires.
func (j *Job) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- j.scheduler.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) report() {
	tasks := j.core.Tasks()
	mode := j.core.PilotingMode()
	j.log.Infow("diagnostics",
		"piloting_mode", mode.String(),
		"tasks_queued", len(tasks),
		"has_pending_command", j.core.HasPendingCommand(),
	)
}
