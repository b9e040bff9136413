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
	"math"
	"testing"

	"github.com/ctessum/geom"
)

const testTolerance = 1.e-9

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func TestCentroidSinglePoint(t *testing.T) {
	for _, p := range []geom.Point{
		{X: 0, Y: 0},
		{X: -123.4, Y: 48.2},
		{X: 179.9, Y: -60},
		{X: 45, Y: 89},
	} {
		c, err := Centroid([]geom.Point{p})
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(c.X, p.X, testTolerance) || absDifferent(c.Y, p.Y, testTolerance) {
			t.Errorf("centroid of %v = %v", p, c)
		}
	}
}

func TestCentroidOrder(t *testing.T) {
	pts := []geom.Point{{X: -124, Y: 48}, {X: -125.5, Y: 49.1}, {X: -123.2, Y: 47.7}, {X: -126, Y: 50}}
	want, err := Centroid(pts)
	if err != nil {
		t.Fatal(err)
	}
	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, perm := range perms {
		var p2 []geom.Point
		for _, i := range perm {
			p2 = append(p2, pts[i])
		}
		have, err := Centroid(p2)
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(have.X, want.X, testTolerance) || absDifferent(have.Y, want.Y, testTolerance) {
			t.Errorf("order %v: have %v, want %v", perm, have, want)
		}
	}
}

func TestCentroidHandComputed(t *testing.T) {
	t.Run("orthogonal", func(t *testing.T) {
		// Unit vectors (1,0,0), (0,1,0) and (0,0,1) average to (1,1,1)/3.
		c, err := Centroid([]geom.Point{{X: 0, Y: 0}, {X: 90, Y: 0}, {X: 0, Y: 90}})
		if err != nil {
			t.Fatal(err)
		}
		wantLat := math.Atan(1/math.Sqrt2) * 180 / math.Pi
		if absDifferent(c.X, 45, testTolerance) || absDifferent(c.Y, wantLat, testTolerance) {
			t.Errorf("have %v, want (45, %g)", c, wantLat)
		}
	})
	t.Run("dateline", func(t *testing.T) {
		c, err := Centroid([]geom.Point{{X: 179, Y: 10}, {X: -179, Y: 10}})
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(math.Abs(c.X), 180, testTolerance) {
			t.Errorf("longitude %g should be on the dateline", c.X)
		}
		if c.Y <= 10 || c.Y > 10.01 {
			t.Errorf("latitude %g should be slightly poleward of 10", c.Y)
		}
	})
	t.Run("three trajectories", func(t *testing.T) {
		start := geom.Point{X: -125, Y: 48}
		ends := []geom.Point{
			{X: start.X + 0.5, Y: start.Y},
			{X: start.X, Y: start.Y + 0.5},
			{X: start.X - 0.5, Y: start.Y - 0.5},
		}
		var x, y, z float64
		for _, p := range ends {
			lon, lat := p.X*math.Pi/180, p.Y*math.Pi/180
			x += math.Cos(lat) * math.Cos(lon) / 3
			y += math.Cos(lat) * math.Sin(lon) / 3
			z += math.Sin(lat) / 3
		}
		wantLon := math.Atan2(y, x) * 180 / math.Pi
		wantLat := math.Atan2(z, math.Sqrt(x*x+y*y)) * 180 / math.Pi
		c, err := Centroid(ends)
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(c.X, wantLon, testTolerance) || absDifferent(c.Y, wantLat, testTolerance) {
			t.Errorf("have %v, want (%g, %g)", c, wantLon, wantLat)
		}
	})
}

func TestCentroidUndefined(t *testing.T) {
	if _, err := Centroid(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty input: have error %v, want %v", err, ErrEmpty)
	}
	if _, err := Centroid([]geom.Point{{X: 0, Y: 0}, {X: 180, Y: 0}}); err == nil {
		t.Error("antipodal points should not have a centroid")
	}
}

func TestGreatCircle(t *testing.T) {
	oneDegree := EarthRadius * math.Pi / 180
	tests := []struct {
		name       string
		p1, p2     geom.Point
		x, y, dist float64
	}{
		{"east", geom.Point{X: 0, Y: 0}, geom.Point{X: 1, Y: 0}, oneDegree, 0, oneDegree},
		{"north", geom.Point{X: 0, Y: 0}, geom.Point{X: 0, Y: 1}, 0, oneDegree, oneDegree},
		{"west across dateline", geom.Point{X: -179.5, Y: 0}, geom.Point{X: 179.5, Y: 0}, -oneDegree, 0, oneDegree},
		{"none", geom.Point{X: 12, Y: 34}, geom.Point{X: 12, Y: 34}, 0, 0, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, _ := GreatCircle.DistanceBearing(test.p1, test.p2)
			if absDifferent(d, test.dist, 1.e-6) {
				t.Errorf("distance: have %g, want %g", d, test.dist)
			}
			v := GreatCircle.Displacement(test.p1, test.p2)
			if !v.Valid {
				t.Fatal("vector should be valid")
			}
			if absDifferent(v.Zonal(), test.x, 1.e-6) || absDifferent(v.Meridional(), test.y, 1.e-6) {
				t.Errorf("vector: have %v, want (%g, %g)", v.Z, test.x, test.y)
			}
		})
	}
}

func TestPlaneSailing(t *testing.T) {
	const oneDegree = 60 * 1.852
	tests := []struct {
		name   string
		p1, p2 geom.Point
		x, y   float64
	}{
		{"north", geom.Point{X: 0, Y: 0}, geom.Point{X: 0, Y: 1}, 0, oneDegree},
		{"east across dateline", geom.Point{X: 179.5, Y: 0}, geom.Point{X: -179.5, Y: 0}, oneDegree, 0},
		{"east at 60N", geom.Point{X: 0, Y: 60}, geom.Point{X: 2, Y: 60}, oneDegree, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := PlaneSailing.Displacement(test.p1, test.p2)
			if absDifferent(v.Zonal(), test.x, 1.e-6) || absDifferent(v.Meridional(), test.y, 1.e-6) {
				t.Errorf("have %v, want (%g, %g)", v.Z, test.x, test.y)
			}
		})
	}
}

func TestDisplacementRoundTrip(t *testing.T) {
	start := geom.Point{X: -124.7, Y: 47.9}
	ends := []geom.Point{
		{X: -124.1, Y: 48.3}, {X: -125.9, Y: 46.2}, {X: -124.7, Y: 45.0},
		{X: -120.0, Y: 47.9}, {X: -130.2, Y: 52.4},
	}
	for _, m := range []DistanceMethod{GreatCircle, PlaneSailing} {
		for _, e := range ends {
			d, b := m.DistanceBearing(start, e)
			v := m.Displacement(start, e)
			if different(v.Magnitude(), d, testTolerance) {
				t.Errorf("%v %v: magnitude %g != distance %g", m, e, v.Magnitude(), d)
			}
			if absDifferent(v.Bearing(), b, testTolerance) {
				t.Errorf("%v %v: bearing %g != %g", m, e, v.Bearing(), b)
			}
		}
	}
}

func TestParseDistanceMethod(t *testing.T) {
	for name, want := range map[string]DistanceMethod{
		"": GreatCircle, "greatcircle": GreatCircle, "planesailing": PlaneSailing,
	} {
		m, err := ParseDistanceMethod(name)
		if err != nil {
			t.Fatal(err)
		}
		if m != want {
			t.Errorf("%q: have %v, want %v", name, m, want)
		}
	}
	if _, err := ParseDistanceMethod("rhumb"); err == nil {
		t.Error("expected an error for an unknown method")
	}
}
