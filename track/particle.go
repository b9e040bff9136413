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

package track

import (
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/driftval"
)

// State is the life-cycle state of a particle.
type State int

// Particle states.
const (
	Pending State = iota
	Active
	Finished
	OutOfBounds
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Finished:
		return "finished"
	case OutOfBounds:
		return "out of bounds"
	}
	return "unknown"
}

// Particle is a numerical drifter.
type Particle struct {
	// StartID is the ID of the start the particle was released from.
	StartID int

	// Member is the index of the particle within its release ensemble.
	Member int

	// Point is the current longitude (X) and latitude (Y) in degrees.
	geom.Point

	// Release is the release time.
	Release time.Time

	// Age is the time since release.
	Age time.Duration

	State State

	// Samples holds the recorded positions.
	Samples []driftval.Sample
}

// Time returns the particle's own clock time.
func (p *Particle) Time() time.Time { return p.Release.Add(p.Age) }

func (p *Particle) record(every time.Duration) {
	if every <= 0 || p.Age%every != 0 {
		return
	}
	if n := len(p.Samples); n > 0 && p.Samples[n-1].Age == p.Age {
		return
	}
	p.Samples = append(p.Samples, driftval.Sample{Age: p.Age, Point: p.Point})
}

// goldenAngle is the angle between successive members of a sunflower
// pattern [radians].
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Seed creates size particles for each start, spread on a sunflower
// pattern within radius [km] of the start position. The first member of
// every ensemble is at the start position.
func Seed(starts []driftval.Start, size int, radius float64) []*Particle {
	if size < 1 {
		size = 1
	}
	o := make([]*Particle, 0, len(starts)*size)
	for _, s := range starts {
		for k := 0; k < size; k++ {
			o = append(o, &Particle{
				StartID: s.ID,
				Member:  k,
				Point:   sunflower(s.Point, k, size, radius),
				Release: s.Time,
			})
		}
	}
	return o
}

// sunflower returns member k of n on a sunflower pattern of the given
// radius [km] around c.
func sunflower(c geom.Point, k, n int, radius float64) geom.Point {
	if k == 0 || n < 2 || radius <= 0 {
		return c
	}
	r := radius * math.Sqrt(float64(k)/float64(n-1))
	theta := float64(k) * goldenAngle
	dx, dy := r*math.Cos(theta), r*math.Sin(theta)
	const degPerKm = 180 / (math.Pi * driftval.EarthRadius)
	return geom.Point{
		X: c.X + dx*degPerKm/math.Cos(c.Y*math.Pi/180),
		Y: c.Y + dy*degPerKm,
	}
}

func sortByRelease(p []*Particle) {
	sort.SliceStable(p, func(i, j int) bool { return p[i].Release.Before(p[j].Release) })
}
