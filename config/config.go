// Package config implements the C8 typed configuration: decoding the
// spec.md §6.8 tunables from a generic attribute map the way the teacher's
// resource.Config decodes component attributes, and validating them.
package config

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/bluewater-robotics/missionexec/missioncore"
)

// Attributes is the typed form of the raw, generic attribute map a
// commander or config file supplies, decoded by FromAttributes.
type Attributes struct {
	WaypointThresholdM  float64 `mapstructure:"waypoint_threshold"`
	TurnRadiusM         float64 `mapstructure:"turn_radius"`
	SegmentLengthM      float64 `mapstructure:"segment_length"`
	DefaultSpeedMps     float64 `mapstructure:"default_speed"`
	Planner             int     `mapstructure:"planner"`       // 0=follower, 1=planner
	DoneBehavior        int     `mapstructure:"done_behavior"` // 0=hover, 1=restart
	LineupDistanceM     float64 `mapstructure:"lineup_distance_m"`
	TickIntervalMs      int     `mapstructure:"tick_interval_ms"`
	HeartbeatIntervalMs int     `mapstructure:"heartbeat_interval_ms"`
	ServiceProbeMs      int     `mapstructure:"service_probe_ms"`
	BackendConnectMs    int     `mapstructure:"backend_connect_ms"`
	LogLevel            string  `mapstructure:"log_level"`
}

// Config is the fully validated, typed configuration used to construct the
// mission core, path builder, and executor.
type Config struct {
	Core                  missioncore.Config
	TickInterval          time.Duration
	HeartbeatInterval     time.Duration
	ServiceProbeTimeout   time.Duration
	BackendConnectTimeout time.Duration
	LogLevel              string
}

// FromAttributes decodes a generic attribute map into Attributes via
// mapstructure, then validates it, exactly as the teacher decodes a
// resource.Config's Attributes into a typed struct before use.
func FromAttributes(raw map[string]interface{}) (Config, error) {
	var attrs Attributes
	attrs.LineupDistanceM = 25 // spec.md §3 default
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &attrs,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "building attribute decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, errors.Wrap(err, "decoding attributes")
	}
	return attrs.Validate()
}

// Validate checks the decoded attributes against spec.md §3/§6.8's ranges
// and fills in ambient defaults, returning the typed Config.
func (a Attributes) Validate() (Config, error) {
	if a.WaypointThresholdM <= 0 {
		return Config{}, errors.New("waypoint_threshold must be > 0")
	}
	if a.TurnRadiusM <= 0 {
		return Config{}, errors.New("turn_radius must be > 0")
	}
	if a.SegmentLengthM <= 0 {
		return Config{}, errors.New("segment_length must be > 0")
	}
	if a.DefaultSpeedMps <= 0 {
		return Config{}, errors.New("default_speed must be > 0")
	}
	if a.Planner != 0 && a.Planner != 1 {
		return Config{}, errors.Errorf("planner must be 0 (follower) or 1 (planner), got %d", a.Planner)
	}
	if a.DoneBehavior != 0 && a.DoneBehavior != 1 {
		return Config{}, errors.Errorf("done_behavior must be 0 (hover) or 1 (restart), got %d", a.DoneBehavior)
	}
	lineup := a.LineupDistanceM
	if lineup <= 0 {
		lineup = 25
	}

	planner := missioncore.PlannerFollower
	if a.Planner == 1 {
		planner = missioncore.PlannerPlanner
	}
	done := missioncore.DoneHover
	if a.DoneBehavior == 1 {
		done = missioncore.DoneRestart
	}

	cfg := Config{
		Core: missioncore.Config{
			WaypointThresholdM: a.WaypointThresholdM,
			TurnRadiusM:        a.TurnRadiusM,
			SegmentLengthM:     a.SegmentLengthM,
			DefaultSpeedMps:    float32(a.DefaultSpeedMps),
			Planner:            planner,
			DoneBehavior:       done,
			LineupDistanceM:    lineup,
			TickInterval:       durationOrDefault(a.TickIntervalMs, 100*time.Millisecond),
		},
		TickInterval:          durationOrDefault(a.TickIntervalMs, 100*time.Millisecond),
		HeartbeatInterval:     durationOrDefault(a.HeartbeatIntervalMs, 100*time.Millisecond),
		ServiceProbeTimeout:   durationOrDefault(a.ServiceProbeMs, 500*time.Millisecond),
		BackendConnectTimeout: durationOrDefault(a.BackendConnectMs, 2*time.Second),
		LogLevel:              a.LogLevel,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func durationOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
