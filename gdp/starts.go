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

package gdp

import (
	"fmt"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/driftval"
)

// StartConfig holds the criteria observations must meet to be used as
// release positions.
type StartConfig struct {
	// DrogueCenterDepth is the drogue centre depth [m] drifters must have.
	DrogueCenterDepth float64

	// FirstYear is the earliest year of usable observations.
	FirstYear int

	// Spacing is the minimum time between starts along one drifter.
	Spacing time.Duration

	// Depth, if not nil, holds the sea-floor elevation [m, negative down]
	// under each observation, indexed like the ragged arrays.
	// Observations where it is below MinDepth are dropped.
	Depth    []float64
	MinDepth float64

	// Land, if not nil, drops observations without model velocities
	// nearby.
	Land *LandMask

	// Region, if not nil, drops observations outside of it.
	Region geom.Polygonal
}

// DefaultStartConfig returns criteria for drifters with 15 m drogues
// since 2007, separated by 10 days, over the continental shelf.
func DefaultStartConfig() StartConfig {
	return StartConfig{
		DrogueCenterDepth: 15,
		FirstYear:         2007,
		Spacing:           10 * driftval.Day,
		MinDepth:          -500,
	}
}

// Filtered counts the observations each criterion removed.
type Filtered struct {
	Drogue, Detached, Year, Depth, Region, Land int
}

// keep returns whether o may be used as a start, recording the reason
// if not.
func (c StartConfig) keep(dr *Drifter, o Observation, f *Filtered) bool {
	switch {
	case dr.DrogueCenterDepth != c.DrogueCenterDepth:
		f.Drogue++
	case !o.DrogueOn:
		f.Detached++
	case o.Time.Year() < c.FirstYear:
		f.Year++
	case c.Depth != nil && c.Depth[o.Index] < c.MinDepth:
		f.Depth++
	case c.Region != nil && o.Point.Within(c.Region) == geom.Outside:
		f.Region++
	case c.Land != nil && !c.Land.Wet(o.Point):
		f.Land++
	default:
		return true
	}
	return false
}

// Starts returns the release positions chosen from the observations
// that meet cfg. Along each drifter the earliest usable observation is
// taken, then the earliest one at least cfg.Spacing later, and so on.
// Start IDs are ragged-array observation indices.
func (d *Dataset) Starts(cfg StartConfig, log logrus.FieldLogger) ([]driftval.Start, error) {
	if cfg.Depth != nil && len(cfg.Depth) != d.numObs {
		return nil, fmt.Errorf("gdp: %d depths for %d observations", len(cfg.Depth), d.numObs)
	}
	if cfg.Spacing <= 0 {
		return nil, fmt.Errorf("gdp: start spacing must be positive, have %v", cfg.Spacing)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	var f Filtered
	var starts []driftval.Start
	for i := range d.Drifters {
		dr := &d.Drifters[i]
		var kept []Observation
		for _, o := range dr.Obs {
			if cfg.keep(dr, o, &f) {
				kept = append(kept, o)
			}
		}
		for _, o := range space(kept, cfg.Spacing) {
			starts = append(starts, driftval.Start{
				ID:      o.Index,
				Drifter: dr.ID,
				Point:   o.Point,
				Time:    o.Time,
			})
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].ID < starts[j].ID })
	log.WithFields(logrus.Fields{
		"starts":         len(starts),
		"drogue_depth":   f.Drogue,
		"drogue_off":     f.Detached,
		"before_year":    f.Year,
		"too_deep":       f.Depth,
		"outside_region": f.Region,
		"on_land":        f.Land,
	}).Info("gdp: chose start positions")
	return starts, nil
}

// space picks observations separated by at least spacing. A drifter
// whose observations all have the same time gives no starts.
func space(obs []Observation, spacing time.Duration) []Observation {
	if len(obs) == 0 {
		return nil
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
	max := obs[len(obs)-1].Time
	var o []Observation
	tc := obs[0].Time
	i := 0
	for tc.Before(max) {
		for obs[i].Time.Before(tc) {
			i++
		}
		o = append(o, obs[i])
		tc = obs[i].Time.Add(spacing)
	}
	return o
}

// Trajectories returns the drifter trajectory following each start, keyed
// by start ID. Samples where the drogue is detached or older than maxAge
// are left out.
func (d *Dataset) Trajectories(starts []driftval.Start, maxAge time.Duration) (map[int]driftval.Trajectory, error) {
	o := make(map[int]driftval.Trajectory, len(starts))
	for _, s := range starts {
		dr, first, err := d.Observation(s.ID)
		if err != nil {
			return nil, err
		}
		start := s
		start.Drifter = dr.ID
		start.Point = first.Point
		start.Time = first.Time
		tr := driftval.Trajectory{Start: start}
		for _, obs := range dr.Obs[first.Index-dr.Obs[0].Index:] {
			age := obs.Time.Sub(first.Time)
			if age < 0 || age > maxAge || !obs.DrogueOn {
				continue
			}
			tr.Samples = append(tr.Samples, driftval.Sample{Age: age, Point: obs.Point})
		}
		o[s.ID] = tr
	}
	return o, nil
}
