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

// Package track advects numerical particles through ocean velocity fields.
package track

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tracker holds the state of a particle-tracking simulation.
type Tracker struct {
	// Particles holds every particle in order of release time.
	Particles []*Particle

	// Field gives the velocities the particles are advected with.
	Field Field

	// Time is the current simulation time.
	Time time.Time

	// Dt is the time step.
	Dt time.Duration

	// End is the time after which no particles are advected.
	End time.Time

	// Done specifies whether the simulation is finished.
	Done bool

	// InitFuncs are functions to be called in the given order
	// at the beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order repeatedly
	// until "Done" is true. Therefore, the simulation will not end until
	// one of the RunFuncs sets "Done" to true.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be called in the given order
	// at the end of the simulation.
	CleanupFuncs []DomainManipulator

	// next is the index of the next particle to be released.
	next int
}

// DomainManipulator is a class of functions that operate on the entire
// simulation.
type DomainManipulator func(ctx context.Context, d *Tracker) error

// Kernel is a class of functions that operate on a single particle.
type Kernel func(ctx context.Context, p *Particle, d *Tracker) error

// Init initializes the simulation by running d.InitFuncs.
func (d *Tracker) Init(ctx context.Context) error {
	for _, f := range d.InitFuncs {
		if err := f(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running d.RunFuncs until d.Done is
// true or ctx is cancelled.
func (d *Tracker) Run(ctx context.Context) error {
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(ctx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running d.CleanupFuncs.
func (d *Tracker) Cleanup(ctx context.Context) error {
	for _, f := range d.CleanupFuncs {
		if err := f(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Active returns the number of particles that are currently being
// advected.
func (d *Tracker) Active() int {
	n := 0
	for _, p := range d.Particles[:d.next] {
		if p.State == Active {
			n++
		}
	}
	return n
}

// SetParticles sets the particles to be simulated. It starts the clock
// at the earliest release time and sets the end of the simulation to the
// latest release time plus maxAge.
func SetParticles(particles []*Particle, maxAge time.Duration) DomainManipulator {
	return func(_ context.Context, d *Tracker) error {
		if len(particles) == 0 {
			return errors.New("track: no particles to release")
		}
		d.Particles = append([]*Particle{}, particles...)
		sortByRelease(d.Particles)
		first := d.Particles[0].Release
		last := d.Particles[len(d.Particles)-1].Release
		d.Time = first
		d.End = first.Add(last.Sub(first)).Add(maxAge)
		d.next = 0
		d.Done = false
		return nil
	}
}

// Release activates particles whose release time has been reached.
func Release() DomainManipulator {
	return func(_ context.Context, d *Tracker) error {
		for d.next < len(d.Particles) && !d.Particles[d.next].Release.After(d.Time) {
			d.Particles[d.next].State = Active
			d.next++
		}
		return nil
	}
}

// Record stores the position of every active particle whose age is a
// multiple of every.
func Record(every time.Duration) DomainManipulator {
	return func(_ context.Context, d *Tracker) error {
		for _, p := range d.Particles[:d.next] {
			if p.State == Active {
				p.record(every)
			}
		}
		return nil
	}
}

// Calculations returns a function that concurrently runs a series of
// kernels on all of the active particles. A particle that leaves the
// domain is marked as out of bounds and skipped by the remaining kernels.
func Calculations(kernels ...Kernel) DomainManipulator {

	nprocs := runtime.GOMAXPROCS(0) // number of processors
	var wg sync.WaitGroup

	return func(ctx context.Context, d *Tracker) error {
		errs := make([]error, nprocs)
		active := d.Particles[:d.next]
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				defer wg.Done()
				for ii := pp; ii < len(active); ii += nprocs {
					p := active[ii]
					for _, f := range kernels {
						if p.State != Active {
							break
						}
						err := f(ctx, p, d)
						if errors.Is(err, ErrOutOfBounds) {
							p.State = OutOfBounds
						} else if err != nil {
							errs[pp] = err
							return
						}
					}
				}
			}(pp)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// Advance moves the simulation clock forward by one time step.
func Advance() DomainManipulator {
	return func(_ context.Context, d *Tracker) error {
		d.Time = d.Time.Add(d.Dt)
		return nil
	}
}

// EndCheck sets d.Done when every particle has been released and has
// finished, or when the clock has passed d.End.
func EndCheck() DomainManipulator {
	return func(_ context.Context, d *Tracker) error {
		if d.Time.After(d.End.Add(d.Dt)) {
			d.Done = true
			return nil
		}
		if d.next == len(d.Particles) && d.Active() == 0 {
			d.Done = true
		}
		return nil
	}
}

// Log writes simulation status messages to log once per simulated day.
func Log(log logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	iteration := 0
	var first time.Time

	return func(_ context.Context, d *Tracker) error {
		if iteration == 0 {
			first = d.Time
		}
		iteration++
		if d.Time.Sub(first)%(24*time.Hour) != 0 {
			return nil
		}
		var ended, lost int
		for _, p := range d.Particles[:d.next] {
			switch p.State {
			case Finished:
				ended++
			case OutOfBounds:
				lost++
			}
		}
		log.WithFields(logrus.Fields{
			"iteration":     iteration,
			"time":          d.Time.Format(time.RFC3339),
			"walltime":      time.Since(startTime).Round(time.Second).String(),
			"pending":       len(d.Particles) - d.next,
			"active":        d.Active(),
			"finished":      ended,
			"out_of_bounds": lost,
		}).Info("tracking")
		return nil
	}
}
