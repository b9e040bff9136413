/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

package driftval

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// EarthRadius is the mean radius of the earth [km].
const EarthRadius = 6371.0

const (
	deg2rad = math.Pi / 180.
	rad2deg = 180. / math.Pi

	nmPerDegree = 60.   // nautical miles per degree of latitude
	kmPerNM     = 1.852 // kilometers per nautical mile
)

// ErrEmpty is returned when a calculation requires at least one value
// and none were given.
var ErrEmpty = errors.New("driftval: no values")

// Centroid returns the mean position of pts, where X is longitude and Y
// is latitude in degrees. The points are averaged as unit vectors in
// earth-centered Cartesian coordinates, which handles the dateline and
// the poles.
func Centroid(pts []geom.Point) (geom.Point, error) {
	if len(pts) == 0 {
		return geom.Point{}, ErrEmpty
	}
	var sum r3.Vec
	for _, p := range pts {
		sum = r3.Add(sum, unitVector(p))
	}
	m := r3.Scale(1/float64(len(pts)), sum)
	if r3.Norm(m) < 1.e-12 {
		return geom.Point{}, fmt.Errorf("driftval: centroid of %d points is undefined (points cancel out)", len(pts))
	}
	return geom.Point{
		X: math.Atan2(m.Y, m.X) * rad2deg,
		Y: math.Atan2(m.Z, math.Hypot(m.X, m.Y)) * rad2deg,
	}, nil
}

func unitVector(p geom.Point) r3.Vec {
	lon, lat := p.X*deg2rad, p.Y*deg2rad
	return r3.Vec{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

// DistanceMethod specifies how the distance and bearing between two
// positions are calculated.
type DistanceMethod int

const (
	// GreatCircle uses the haversine distance and the initial
	// great-circle bearing.
	GreatCircle DistanceMethod = iota

	// PlaneSailing uses the plane-sailing approximation, in which
	// the longitude difference is scaled by the cosine of the mean latitude.
	PlaneSailing
)

// ParseDistanceMethod returns the distance method with the given name.
func ParseDistanceMethod(name string) (DistanceMethod, error) {
	switch name {
	case "greatcircle", "GreatCircle", "":
		return GreatCircle, nil
	case "planesailing", "PlaneSailing":
		return PlaneSailing, nil
	default:
		return GreatCircle, fmt.Errorf("driftval: invalid distance method %q; "+
			"valid options are 'greatcircle' and 'planesailing'", name)
	}
}

func (m DistanceMethod) String() string {
	switch m {
	case GreatCircle:
		return "greatcircle"
	case PlaneSailing:
		return "planesailing"
	default:
		return fmt.Sprintf("DistanceMethod(%d)", int(m))
	}
}

// DistanceBearing returns the distance [km] from p1 to p2 and the
// bearing [radians, clockwise from north] of p2 as seen from p1.
func (m DistanceMethod) DistanceBearing(p1, p2 geom.Point) (dist, bearing float64) {
	if m == PlaneSailing {
		return planeSailing(p1, p2)
	}
	return greatCircle(p1, p2)
}

func greatCircle(p1, p2 geom.Point) (dist, bearing float64) {
	φ1, φ2 := p1.Y*deg2rad, p2.Y*deg2rad
	Δφ := φ2 - φ1
	Δλ := (p2.X - p1.X) * deg2rad
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	dist = 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	bearing = math.Atan2(math.Sin(Δλ)*math.Cos(φ2),
		math.Cos(φ1)*math.Sin(φ2)-math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ))
	return dist, bearing
}

func planeSailing(p1, p2 geom.Point) (dist, bearing float64) {
	dlon := p2.X - p1.X
	if math.Abs(dlon) > 180 {
		dlon = -math.Copysign(360-math.Abs(dlon), dlon)
	}
	meanLat := (math.Abs(p1.Y*deg2rad) + math.Abs(p2.Y*deg2rad)) / 2
	dep := math.Cos(meanLat) * dlon
	dlat := p2.Y - p1.Y
	dist = nmPerDegree * kmPerNM * math.Hypot(dlat, dep)
	return dist, math.Atan2(dep, dlat)
}

// Displacement returns the vector from p1 to p2 [km] with the zonal
// (eastward) component as the real part and the meridional (northward)
// component as the imaginary part.
func (m DistanceMethod) Displacement(p1, p2 geom.Point) Vector {
	d, b := m.DistanceBearing(p1, p2)
	return NewVector(complex(d*math.Sin(b), d*math.Cos(b)))
}
