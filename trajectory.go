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
	"time"

	"github.com/ctessum/geom"
)

// Day is the unit of drifter durations.
const Day = 24 * time.Hour

// Start is a position and time from which a real drifter trajectory is
// followed and numerical particles are released.
type Start struct {
	// ID identifies the start. It is the index of the start observation
	// in the drifter data set.
	ID int

	// Drifter is the identifier of the real drifter that passed through
	// the start.
	Drifter int

	// Point holds the longitude (X) and latitude (Y) in degrees.
	geom.Point

	Time time.Time
}

// Sample is a trajectory position at a given time since the start.
type Sample struct {
	Age time.Duration
	geom.Point
}

// Trajectory is the path followed from a Start.
type Trajectory struct {
	Start
	Samples []Sample
}

// At returns the position of t at the given age. ok is false if the
// trajectory has no sample at exactly that age or has more than one.
func (t Trajectory) At(age time.Duration) (p geom.Point, ok bool) {
	n := 0
	for _, s := range t.Samples {
		if s.Age == age {
			p = s.Point
			n++
		}
	}
	if n != 1 {
		return geom.Point{}, false
	}
	return p, true
}

// Dispersal returns the displacement from the start of t to its position
// after the given duration, or a missing Vector if the position is not
// uniquely defined.
func (t Trajectory) Dispersal(duration time.Duration, m DistanceMethod) Vector {
	p, ok := t.At(duration)
	if !ok {
		return Vector{}
	}
	return m.Displacement(t.Point, p)
}

// Endpoint is the position of a numerical particle released from start
// ID after a fixed duration.
type Endpoint struct {
	ID int
	geom.Point
}
