// Package nav implements the nav adapter (C1): exposing the vehicle's
// current fix and heading, distance/bearing queries, and geographic/local
// frame pose conversion. Failures are reported as absence, never panics or
// errors, per spec.
package nav

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/bluewater-robotics/missionexec/geo"
)

// Sensor is the narrow interface a positioning source implements, mirroring
// the shape of go.viam.com/rdk's movementsensor.MovementSensor: a component
// the adapter depends on, not something this package constructs itself.
type Sensor interface {
	// PositionLatLon returns the current fix in degrees, or ok=false before
	// the first fix arrives.
	PositionLatLon() (lat, lon float64, ok bool)
	// HeadingDegNED returns the current heading, or ok=false if unknown.
	HeadingDegNED() (heading float64, ok bool)
}

// Adapter is the C1 nav adapter built on top of a Sensor.
type Adapter struct {
	mu     sync.RWMutex
	sensor Sensor
	origin geo.Point // local-frame tangent point, set on first fix
	hasOrg bool
}

// NewAdapter constructs an Adapter around the given positioning sensor.
func NewAdapter(sensor Sensor) *Adapter {
	return &Adapter{sensor: sensor}
}

// PositionLatLon returns the current fix, in degrees, or ok=false if none yet.
func (a *Adapter) PositionLatLon() (lat, lon float64, ok bool) {
	lat, lon, ok = a.sensor.PositionLatLon()
	if ok {
		a.mu.Lock()
		if !a.hasOrg {
			a.origin = geo.Point{LatDeg: lat, LonDeg: lon}
			a.hasOrg = true
		}
		a.mu.Unlock()
	}
	return lat, lon, ok
}

// Heading returns the current heading in degrees NED, or ok=false if unknown.
func (a *Adapter) Heading() (heading float64, ok bool) {
	return a.sensor.HeadingDegNED()
}

// CurrentPoint returns the current fix as a geo.Point, or ok=false.
func (a *Adapter) CurrentPoint() (geo.Point, bool) {
	lat, lon, ok := a.PositionLatLon()
	if !ok {
		return geo.Point{}, false
	}
	return geo.Point{LatDeg: lat, LonDeg: lon}, true
}

// CurrentPose returns the current fix and heading as a geo.Pose, or ok=false
// if either the fix or the heading is unavailable.
func (a *Adapter) CurrentPose() (geo.Pose, bool) {
	pt, ok := a.CurrentPoint()
	if !ok {
		return geo.Pose{}, false
	}
	hdg, ok := a.Heading()
	if !ok {
		return geo.Pose{}, false
	}
	return geo.Pose{Point: pt, HeadingDegNED: hdg}, true
}

// DistanceBearingTo returns the great-circle distance (meters) and initial
// bearing (degrees NED) from the current fix to the given point, or
// ok=false if there is no current fix.
func (a *Adapter) DistanceBearingTo(target geo.Point) (meters, bearingDeg float64, ok bool) {
	cur, ok := a.CurrentPoint()
	if !ok {
		return 0, 0, false
	}
	return geo.GreatCircleDistanceMeters(cur, target), geo.BearingDegNED(cur, target), true
}

// GeoToLocalPose projects a geographic pose into the adapter's local
// tangent-plane frame (ENU meters), using the first recorded fix as origin.
// Before any fix has been recorded the point itself is used as the origin,
// yielding a zero vector for that single call.
func (a *Adapter) GeoToLocalPose(p geo.Pose) geo.LocalPose {
	a.mu.RLock()
	origin := a.origin
	hasOrg := a.hasOrg
	a.mu.RUnlock()
	if !hasOrg {
		origin = p.Point
	}
	x, y := equirectangularMeters(origin, p.Point)
	return geo.LocalPose{
		Vector:  r3.Vector{X: x, Y: y, Z: 0},
		Heading: p.HeadingDegNED,
	}
}

// LocalPosesToGeoPoses converts a slice of local-frame poses back to
// geographic poses around the adapter's current origin.
func (a *Adapter) LocalPosesToGeoPoses(poses []geo.LocalPose) []geo.Pose {
	a.mu.RLock()
	origin := a.origin
	hasOrg := a.hasOrg
	a.mu.RUnlock()
	if !hasOrg {
		return make([]geo.Pose, len(poses))
	}
	out := make([]geo.Pose, len(poses))
	for i, lp := range poses {
		lat, lon := inverseEquirectangular(origin, lp.Vector.X, lp.Vector.Y)
		out[i] = geo.Pose{Point: geo.Point{LatDeg: lat, LonDeg: lon}, HeadingDegNED: lp.Heading}
	}
	return out
}

const earthRadiusM = 6371000.0

// equirectangularMeters is a small-area tangent-plane approximation, good
// enough for the meter-scale line-up geometry this package is used for; it
// is not intended for long-range dead reckoning.
func equirectangularMeters(origin, p geo.Point) (x, y float64) {
	latOriginRad := origin.LatDeg * math.Pi / 180
	dLat := (p.LatDeg - origin.LatDeg) * math.Pi / 180
	dLon := (p.LonDeg - origin.LonDeg) * math.Pi / 180
	x = dLon * math.Cos(latOriginRad) * earthRadiusM
	y = dLat * earthRadiusM
	return x, y
}

func inverseEquirectangular(origin geo.Point, x, y float64) (lat, lon float64) {
	latOriginRad := origin.LatDeg * math.Pi / 180
	dLat := y / earthRadiusM
	dLon := x / (earthRadiusM * math.Cos(latOriginRad))
	lat = origin.LatDeg + dLat*180/math.Pi
	lon = origin.LonDeg + dLon*180/math.Pi
	return lat, lon
}
