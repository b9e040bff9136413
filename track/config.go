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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/driftval"
)

// Config holds the parameters of a tracking run.
type Config struct {
	// Dt is the advection time step.
	Dt time.Duration

	// OutputEvery is the interval between recorded positions. It must
	// be a multiple of Dt.
	OutputEvery time.Duration

	// Duration is the maximum particle age.
	Duration time.Duration

	// EnsembleSize is the number of particles released from each start.
	EnsembleSize int

	// EnsembleRadius is the radius [km] the ensemble members are spread
	// over.
	EnsembleRadius float64
}

// DefaultConfig returns a one-hour time step, six-hourly output, a
// 60-day duration and a single particle per start.
func DefaultConfig() Config {
	return Config{
		Dt:           time.Hour,
		OutputEvery:  6 * time.Hour,
		Duration:     60 * driftval.Day,
		EnsembleSize: 1,
	}
}

// Check returns an error if c is invalid.
func (c Config) Check() error {
	switch {
	case c.Dt <= 0:
		return fmt.Errorf("track: time step must be positive (%v)", c.Dt)
	case c.OutputEvery <= 0 || c.OutputEvery%c.Dt != 0:
		return fmt.Errorf("track: output interval %v must be a positive multiple of the time step %v", c.OutputEvery, c.Dt)
	case c.Duration <= 0:
		return fmt.Errorf("track: duration must be positive (%v)", c.Duration)
	case c.EnsembleSize < 1:
		return fmt.Errorf("track: ensemble size must be at least 1 (%d)", c.EnsembleSize)
	case c.EnsembleRadius < 0:
		return fmt.Errorf("track: ensemble radius must not be negative (%g)", c.EnsembleRadius)
	case c.EnsembleSize > 1 && c.EnsembleRadius == 0:
		return fmt.Errorf("track: %d ensemble members need a positive radius to spread over", c.EnsembleSize)
	}
	return nil
}

// Tracker returns a Tracker that releases particles from starts and
// advects them through field with the parameters in c. log receives
// progress messages and may be nil.
func (c Config) Tracker(starts []driftval.Start, field Field, log logrus.FieldLogger) (*Tracker, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		Field: field,
		Dt:    c.Dt,
		InitFuncs: []DomainManipulator{
			SetParticles(Seed(starts, c.EnsembleSize, c.EnsembleRadius), c.Duration),
		},
		RunFuncs: []DomainManipulator{
			Release(),
			Record(c.OutputEvery),
			Log(log),
			Calculations(AdvectionRK4(), SampleAge(c.Duration)),
			Advance(),
			EndCheck(),
		},
		CleanupFuncs: []DomainManipulator{
			Record(c.OutputEvery),
		},
	}, nil
}
