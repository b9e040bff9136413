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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/internal/ncf"
)

const timeUnits = "seconds since 1970-01-01 00:00:00"

// WriteOutput writes the recorded positions of particles to the named
// NetCDF file, one trajectory per particle.
func WriteOutput(name string, particles []*Particle) error {
	if len(particles) == 0 {
		return errors.New("track: no trajectories to write")
	}
	nobs := 1
	for _, p := range particles {
		if len(p.Samples) > nobs {
			nobs = len(p.Samples)
		}
	}
	ntraj := len(particles)

	h := cdf.NewHeader([]string{"traj", "obs"}, []int{ntraj, nobs})
	h.AddAttribute("", "title", "DriftVal particle trajectories")
	h.AddAttribute("", "feature_type", "trajectory")
	h.AddVariable("lon", []string{"traj", "obs"}, []float32{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("lat", []string{"traj", "obs"}, []float32{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("age", []string{"traj", "obs"}, []int32{0})
	h.AddAttribute("age", "units", "seconds")
	h.AddAttribute("age", "_FillValue", []int32{-1})
	h.AddVariable("release", []string{"traj"}, []float64{0})
	h.AddAttribute("release", "units", timeUnits)
	h.AddVariable("start_id", []string{"traj"}, []int32{0})
	h.AddVariable("member", []string{"traj"}, []int32{0})
	h.AddVariable("state", []string{"traj"}, []int32{0})
	h.AddAttribute("state", "flag_values", []int32{int32(Pending), int32(Active), int32(Finished), int32(OutOfBounds)})
	h.AddAttribute("state", "flag_meanings", "pending active finished out_of_bounds")
	h.Define()

	lon := make([]float32, ntraj*nobs)
	lat := make([]float32, ntraj*nobs)
	age := make([]int32, ntraj*nobs)
	release := make([]float64, ntraj)
	startID := make([]int32, ntraj)
	member := make([]int32, ntraj)
	state := make([]int32, ntraj)
	nan := float32(math.NaN())
	for i, p := range particles {
		for j := 0; j < nobs; j++ {
			k := i*nobs + j
			if j >= len(p.Samples) {
				lon[k], lat[k], age[k] = nan, nan, -1
				continue
			}
			s := p.Samples[j]
			lon[k], lat[k], age[k] = float32(s.X), float32(s.Y), int32(s.Age/time.Second)
		}
		if p.StartID > math.MaxInt32 || p.StartID < math.MinInt32 {
			return fmt.Errorf("track: particle start ID %d does not fit in %s", p.StartID, name)
		}
		release[i] = float64(p.Release.Unix())
		startID[i] = int32(p.StartID)
		member[i] = int32(p.Member)
		state[i] = int32(p.State)
	}

	f, err := ncf.Create(name, h)
	if err != nil {
		return err
	}
	for _, v := range []struct {
		name string
		data interface{}
	}{
		{"lon", lon}, {"lat", lat}, {"age", age}, {"release", release},
		{"start_id", startID}, {"member", member}, {"state", state},
	} {
		if err := f.Write(v.name, v.data); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ReadOutput reads trajectories written by WriteOutput. The ID of each
// trajectory is the ID of the start it was released from, and its start
// point is its position at age zero.
func ReadOutput(name string) ([]driftval.Trajectory, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dims, err := f.Lengths("lon")
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("track: %s: lon has %d dimensions, want 2", name, len(dims))
	}
	ntraj, nobs := dims[0], dims[1]
	lon, err := f.Float64s("lon")
	if err != nil {
		return nil, err
	}
	lat, err := f.Float64s("lat")
	if err != nil {
		return nil, err
	}
	age, err := f.Float64s("age")
	if err != nil {
		return nil, err
	}
	release, err := f.Times("release")
	if err != nil {
		return nil, err
	}
	ids, err := f.Ints("start_id")
	if err != nil {
		return nil, err
	}
	if len(lat) != len(lon) || len(age) != len(lon) || len(release) != ntraj || len(ids) != ntraj {
		return nil, fmt.Errorf("track: %s: variable lengths do not match", name)
	}

	o := make([]driftval.Trajectory, ntraj)
	for i := range o {
		tr := driftval.Trajectory{Start: driftval.Start{ID: ids[i], Drifter: -1, Time: release[i]}}
		for j := 0; j < nobs; j++ {
			k := i*nobs + j
			if math.IsNaN(age[k]) || math.IsNaN(lon[k]) || math.IsNaN(lat[k]) {
				continue
			}
			s := driftval.Sample{
				Age:   time.Duration(age[k]) * time.Second,
				Point: geom.Point{X: lon[k], Y: lat[k]},
			}
			if s.Age == 0 {
				tr.Point = s.Point
			}
			tr.Samples = append(tr.Samples, s)
		}
		o[i] = tr
	}
	return o, nil
}
