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
	"context"
	"errors"
	"math"
	"time"

	"github.com/ctessum/geom"
)

// ErrOutOfBounds is returned when a position is outside of a velocity
// field.
var ErrOutOfBounds = errors.New("track: position is out of bounds")

// metersPerDegree is the length of one degree of latitude [m].
const metersPerDegree = 1852 * 60

// Field is a time-varying 2-D velocity field.
type Field interface {
	// Velocity returns the zonal and meridional velocity [m/s] at
	// position p and time t. It returns ErrOutOfBounds if p is outside
	// the field.
	Velocity(ctx context.Context, t time.Time, p geom.Point) (u, v float64, err error)
}

// Uniform is a velocity field with the same zonal (U) and meridional (V)
// velocity [m/s] everywhere.
type Uniform struct {
	U, V float64
}

// Velocity implements Field.
func (f Uniform) Velocity(_ context.Context, _ time.Time, _ geom.Point) (u, v float64, err error) {
	return f.U, f.V, nil
}

// degreeRates converts velocities [m/s] at latitude lat [degrees] to
// rates of change of longitude and latitude [degrees/s].
func degreeRates(u, v, lat float64) (dlon, dlat float64) {
	return u / (metersPerDegree * math.Cos(lat*math.Pi/180)), v / metersPerDegree
}

// AdvectionRK4 advects particles through d.Field using 4th-order
// Runge-Kutta integration over one time step.
func AdvectionRK4() Kernel {
	return func(ctx context.Context, p *Particle, d *Tracker) error {
		dt := d.Dt.Seconds()
		t := p.Time()
		half := t.Add(d.Dt / 2)

		rate := func(t time.Time, x geom.Point) (float64, float64, error) {
			u, v, err := d.Field.Velocity(ctx, t, x)
			if err != nil {
				return 0, 0, err
			}
			dlon, dlat := degreeRates(u, v, x.Y)
			return dlon, dlat, nil
		}

		u1, v1, err := rate(t, p.Point)
		if err != nil {
			return err
		}
		p1 := geom.Point{X: p.X + u1*.5*dt, Y: p.Y + v1*.5*dt}
		u2, v2, err := rate(half, p1)
		if err != nil {
			return err
		}
		p2 := geom.Point{X: p.X + u2*.5*dt, Y: p.Y + v2*.5*dt}
		u3, v3, err := rate(half, p2)
		if err != nil {
			return err
		}
		p3 := geom.Point{X: p.X + u3*dt, Y: p.Y + v3*dt}
		u4, v4, err := rate(t.Add(d.Dt), p3)
		if err != nil {
			return err
		}
		p.X += (u1 + 2*u2 + 2*u3 + u4) / 6 * dt
		p.Y += (v1 + 2*v2 + 2*v3 + v4) / 6 * dt
		return nil
	}
}

// SampleAge ages particles by one time step and finishes those older
// than maxAge.
func SampleAge(maxAge time.Duration) Kernel {
	return func(_ context.Context, p *Particle, d *Tracker) error {
		p.Age += d.Dt
		if p.Age > maxAge {
			p.State = Finished
		}
		return nil
	}
}
