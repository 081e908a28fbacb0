// Package geo holds the pure geographic and local-frame data types shared by
// every component of the mission executor: GeoPoint, GeoPose, and the local
// Cartesian pose produced by the nav adapter's frame conversion.
package geo

import (
	"math"

	"github.com/golang/geo/r3"
	geolib "github.com/kellydunn/golang-geo"
)

// Point is a geographic location, matching spec's GeoPoint.
type Point struct {
	LatDeg float64
	LonDeg float64
}

// Pose is a geographic location plus a NED heading in degrees.
type Pose struct {
	Point
	HeadingDegNED float64
}

// LocalPose is a Cartesian pose in a local tangent-plane frame, as produced
// and consumed by the nav adapter's geographic/local conversions.
type LocalPose struct {
	Vector  r3.Vector // meters, ENU: X=east, Y=north, Z=up
	Heading float64   // degrees NED
}

// ToGeolib converts a Point to the golang-geo representation used for
// geodesic math (great-circle distance, bearing, point-at-distance).
func (p Point) ToGeolib() *geolib.Point {
	return geolib.NewPoint(p.LatDeg, p.LonDeg)
}

// FromGeolib converts a golang-geo Point back to our Point.
func FromGeolib(p *geolib.Point) Point {
	return Point{LatDeg: p.Lat(), LonDeg: p.Lng()}
}

// GreatCircleDistanceMeters returns the geodesic distance between two points.
func GreatCircleDistanceMeters(a, b Point) float64 {
	return a.ToGeolib().GreatCircleDistance(b.ToGeolib()) * 1000.0
}

// BearingDegNED returns the initial bearing from a to b, degrees clockwise from north.
func BearingDegNED(a, b Point) float64 {
	brg := a.ToGeolib().BearingTo(b.ToGeolib())
	return normalizeDeg(brg)
}

// DirectGeodesic computes the point `distanceMeters` away from `start` along
// `bearingDeg` (NED), the geodesic "direct" problem used to build the
// line-up point behind a trackline's first waypoint.
func DirectGeodesic(start Point, bearingDeg, distanceMeters float64) Point {
	dst := start.ToGeolib().PointAtDistanceAndBearing(distanceMeters/1000.0, bearingDeg)
	return FromGeolib(dst)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// HeadingBetween returns the NED heading of the segment a->b, an alias of
// BearingDegNED kept for readability at trackline call sites.
func HeadingBetween(a, b Point) float64 {
	return BearingDegNED(a, b)
}

// AddHeading returns h + delta normalized into [0, 360).
func AddHeading(h, delta float64) float64 {
	return normalizeDeg(h + delta)
}
