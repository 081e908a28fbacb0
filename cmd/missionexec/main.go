// Command missionexec is the process entry point (C9): it wires the nav
// adapter, path builder, mission core, executor, and status publisher
// together and drives the executor until interrupted.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	goutils "go.viam.com/utils"

	"github.com/bluewater-robotics/missionexec/command"
	"github.com/bluewater-robotics/missionexec/config"
	"github.com/bluewater-robotics/missionexec/diagnostics"
	"github.com/bluewater-robotics/missionexec/executor"
	"github.com/bluewater-robotics/missionexec/internal/logging"
	"github.com/bluewater-robotics/missionexec/missioncore"
	"github.com/bluewater-robotics/missionexec/nav"
	"github.com/bluewater-robotics/missionexec/pathbuilder"
	"github.com/bluewater-robotics/missionexec/status"
	"github.com/bluewater-robotics/missionexec/transport"
)

func main() {
	app := &cli.App{
		Name:  "missionexec",
		Usage: "run the mission executor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to a JSON attribute config file",
				Required: true,
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		panic(err)
	}
}

func run(c *cli.Context) error {
	raw, err := loadAttributes(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	cfg, err := config.FromAttributes(raw)
	if err != nil {
		return errors.Wrap(err, "validating config")
	}

	log := logging.New(parseLevel(cfg.LogLevel))

	sensor := &nullSensor{}
	adapter := nav.NewAdapter(sensor)

	paths := pathbuilder.New(pathbuilder.Config{
		TurnRadiusM:    cfg.Core.TurnRadiusM,
		SegmentLengthM: cfg.Core.SegmentLengthM,
		ServiceProbe:   cfg.ServiceProbeTimeout,
	}, nil, nil, log)

	core := missioncore.New(cfg.Core, log)

	heartbeatBus := transport.NewBus[status.Heartbeat]()
	vizBus := transport.NewBus[status.VisualizationLayer]()
	eolBus := transport.NewBus[string]()
	publisher := status.NewPublisher(core, heartbeatBus, vizBus, eolBus)
	core.SetStatusSink(publisher)

	backends := executor.Backends{
		Follower:   &nullBackend{},
		Planner:    &nullBackend{},
		Hover:      &nullBackend{},
		SurveyArea: &nullBackend{},
	}
	exec := executor.New(core, adapter, paths, backends, publisher, log)

	diag, err := diagnostics.New(core, log, 0)
	if err != nil {
		return errors.Wrap(err, "building diagnostics job")
	}
	diag.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var backgroundWorkers sync.WaitGroup
	backgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		exec.Run(ctx)
	}, backgroundWorkers.Done)

	go watchCommandLines(ctx, core, cfg.Core.DefaultSpeedMps, log)

	<-ctx.Done()
	log.Infow("shutting down")
	backgroundWorkers.Wait()
	_ = diag.Stop(context.Background())
	return nil
}

// watchCommandLines reads newline-delimited commands from stdin and applies
// them to the core, standing in for the out-of-scope command transport.
func watchCommandLines(ctx context.Context, core *missioncore.Core, defaultSpeed float32, log logging.Logger) {
	parser := command.NewParser(defaultSpeed)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		action, err := parser.Parse(line)
		if err != nil {
			log.Warnw("dropping malformed command", "err", err, "line", line)
			continue
		}
		core.Apply(action)
	}
}

func loadAttributes(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var raw map[string]interface{}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// nullSensor reports no fix, a safe default until a real positioning
// component is wired in; the nav adapter already treats an unavailable fix
// as absence rather than an error.
type nullSensor struct{}

func (nullSensor) PositionLatLon() (lat, lon float64, ok bool) { return 0, 0, false }
func (nullSensor) HeadingDegNED() (heading float64, ok bool)   { return 0, false }

// nullBackend reports unreachable for every backend, a safe default until
// the real motion-backend action clients are wired in.
type nullBackend struct{}

func (nullBackend) WaitForServer(ctx context.Context) bool { return false }
func (nullBackend) Start(ctx context.Context, goal interface{}) (executor.Handle, error) {
	return nil, errors.New("backend not wired")
}
func (nullBackend) CancelGoal(ctx context.Context) error { return nil }
