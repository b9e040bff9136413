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

// Package gdp reads Global Drifter Program trajectories from the
// contiguous ragged-array NetCDF distribution and chooses the positions
// that virtual particles are released from.
package gdp

import (
	"fmt"
	"sort"
	"time"

	"github.com/ctessum/geom"

	"github.com/spatialmodel/driftval/internal/ncf"
)

// Observation is a single drifter position.
type Observation struct {
	// Index is the position of the observation in the ragged arrays.
	Index int
	geom.Point
	Time time.Time

	// DrogueOn is whether the drogue was attached.
	DrogueOn bool
}

// Drifter is the record of a single drifting buoy.
type Drifter struct {
	// ID is the GDP drifter number.
	ID int

	// DrogueCenterDepth is the depth [m] of the centre of the drogue.
	DrogueCenterDepth float64

	Obs []Observation
}

// Dataset holds drifters in the order they appear in the ragged arrays.
type Dataset struct {
	Drifters []Drifter

	// offsets[i] is the index of the first observation of drifter i.
	offsets []int
	numObs  int
}

// NumObs returns the total number of observations.
func (d *Dataset) NumObs() int { return d.numObs }

// Read reads the ragged-array file name. The file must contain the
// per-drifter variables ID, rowsize and DrogueCenterDepth and the
// per-observation variables lon, lat, time and drogue_status.
func Read(name string) (*Dataset, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, fmt.Errorf("gdp: %w", err)
	}
	defer f.Close()

	perDrifter := make(map[string][]float64)
	for _, v := range []string{"ID", "rowsize", "DrogueCenterDepth"} {
		if perDrifter[v], err = f.Float64s(v); err != nil {
			return nil, fmt.Errorf("gdp: %v", err)
		}
	}
	perObs := make(map[string][]float64)
	for _, v := range []string{"lon", "lat", "drogue_status"} {
		if perObs[v], err = f.Float64s(v); err != nil {
			return nil, fmt.Errorf("gdp: %v", err)
		}
	}
	times, err := f.Times("time")
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}

	n := len(perDrifter["ID"])
	for _, v := range []string{"rowsize", "DrogueCenterDepth"} {
		if len(perDrifter[v]) != n {
			return nil, fmt.Errorf("gdp: %s has %d values for %d drifters", v, len(perDrifter[v]), n)
		}
	}
	nObs := len(times)
	for _, v := range []string{"lon", "lat", "drogue_status"} {
		if len(perObs[v]) != nObs {
			return nil, fmt.Errorf("gdp: %s has %d values for %d observations", v, len(perObs[v]), nObs)
		}
	}
	total := 0
	for _, r := range perDrifter["rowsize"] {
		total += int(r)
	}
	if total != nObs {
		return nil, fmt.Errorf("gdp: row sizes add up to %d but there are %d observations", total, nObs)
	}

	d := &Dataset{Drifters: make([]Drifter, n), offsets: make([]int, n), numObs: nObs}
	o := 0
	for i := range d.Drifters {
		dr := &d.Drifters[i]
		dr.ID = int(perDrifter["ID"][i])
		dr.DrogueCenterDepth = perDrifter["DrogueCenterDepth"][i]
		d.offsets[i] = o
		rows := int(perDrifter["rowsize"][i])
		dr.Obs = make([]Observation, rows)
		for j := range dr.Obs {
			dr.Obs[j] = Observation{
				Index:    o,
				Point:    geom.Point{X: perObs["lon"][o], Y: perObs["lat"][o]},
				Time:     times[o],
				DrogueOn: perObs["drogue_status"][o] != 0,
			}
			o++
		}
	}
	return d, nil
}

// Observation returns the observation with ragged-array index i and the
// drifter it belongs to.
func (d *Dataset) Observation(i int) (*Drifter, Observation, error) {
	if i < 0 || i >= d.numObs {
		return nil, Observation{}, fmt.Errorf("gdp: observation index %d out of range [0, %d)", i, d.numObs)
	}
	k := sort.Search(len(d.offsets), func(k int) bool { return d.offsets[k] > i }) - 1
	dr := &d.Drifters[k]
	return dr, dr.Obs[i-d.offsets[k]], nil
}
