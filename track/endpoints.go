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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/internal/ncf"
)

// Endpoints returns the positions of trajectories after the given
// duration, sorted by start ID. Trajectories with fewer recorded
// positions up to the duration than duration/every, or without a unique
// position at exactly the duration, are left out. The second return
// value is the number of trajectories left out.
func Endpoints(trajectories []driftval.Trajectory, duration, every time.Duration) ([]driftval.Endpoint, int) {
	need := int(duration / every)
	var o []driftval.Endpoint
	var skipped int
	for _, tr := range trajectories {
		n := 0
		for _, s := range tr.Samples {
			if s.Age <= duration {
				n++
			}
		}
		if n < need {
			skipped++
			continue
		}
		p, ok := tr.At(duration)
		if !ok {
			skipped++
			continue
		}
		o = append(o, driftval.Endpoint{ID: tr.ID, Point: p})
	}
	sort.SliceStable(o, func(i, j int) bool { return o[i].ID < o[j].ID })
	return o, skipped
}

// EndpointFile returns the name of the endpoint file in dir for the
// given duration [days].
func EndpointFile(dir string, days int) string {
	return filepath.Join(dir, fmt.Sprintf("particlePositions_pld%02d.nc", days))
}

// WriteEndpoints writes endpoints to the named NetCDF file.
func WriteEndpoints(name string, endpoints []driftval.Endpoint) error {
	if len(endpoints) == 0 {
		return fmt.Errorf("track: no endpoints to write to %s", name)
	}
	n := len(endpoints)
	h := cdf.NewHeader([]string{"obs"}, []int{n})
	h.AddAttribute("", "title", "DriftVal particle positions")
	h.AddVariable("idArr", []string{"obs"}, []int32{0})
	h.AddAttribute("idArr", "long_name", "start ID")
	h.AddVariable("lonArr", []string{"obs"}, []float64{0})
	h.AddAttribute("lonArr", "units", "degrees_east")
	h.AddVariable("latArr", []string{"obs"}, []float64{0})
	h.AddAttribute("latArr", "units", "degrees_north")
	h.Define()

	ids := make([]int32, n)
	lon := make([]float64, n)
	lat := make([]float64, n)
	for i, e := range endpoints {
		if e.ID > math.MaxInt32 || e.ID < math.MinInt32 {
			return fmt.Errorf("track: endpoint start ID %d does not fit in %s", e.ID, name)
		}
		ids[i], lon[i], lat[i] = int32(e.ID), e.X, e.Y
	}
	f, err := ncf.Create(name, h)
	if err != nil {
		return err
	}
	if err := f.Write("idArr", ids); err != nil {
		f.Close()
		return err
	}
	if err := f.Write("lonArr", lon); err != nil {
		f.Close()
		return err
	}
	if err := f.Write("latArr", lat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadEndpoints reads endpoints written by WriteEndpoints.
func ReadEndpoints(name string) ([]driftval.Endpoint, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ids, err := f.Ints("idArr")
	if err != nil {
		return nil, err
	}
	lon, err := f.Float64s("lonArr")
	if err != nil {
		return nil, err
	}
	lat, err := f.Float64s("latArr")
	if err != nil {
		return nil, err
	}
	if len(lon) != len(ids) || len(lat) != len(ids) {
		return nil, fmt.Errorf("track: %s: idArr, lonArr and latArr lengths differ (%d, %d, %d)", name, len(ids), len(lon), len(lat))
	}
	o := make([]driftval.Endpoint, len(ids))
	for i := range o {
		o[i] = driftval.Endpoint{ID: ids[i], Point: geom.Point{X: lon[i], Y: lat[i]}}
	}
	return o, nil
}

// EndpointSource returns a source of the endpoint files in dir.
// WriteEndpointFiles writes no file for a duration without endpoints,
// so a missing file yields no endpoints.
func EndpointSource(dir string, log logrus.FieldLogger) driftval.EndpointSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(_ context.Context, days int) ([]driftval.Endpoint, error) {
		name := EndpointFile(dir, days)
		if _, err := os.Stat(name); os.IsNotExist(err) {
			log.WithFields(logrus.Fields{
				"duration": days,
				"file":     name,
			}).Warn("no endpoint file; skipping duration")
			return nil, nil
		}
		return ReadEndpoints(name)
	}
}

// WriteEndpointFiles reads the trajectory output files and writes an
// endpoint file to dir for each duration [days]. Durations without any
// endpoints are logged and skipped.
func WriteEndpointFiles(ctx context.Context, outputs []string, dir string, days []int, every time.Duration, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var trajectories []driftval.Trajectory
	for _, name := range outputs {
		t, err := ReadOutput(name)
		if err != nil {
			return err
		}
		trajectories = append(trajectories, t...)
	}
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		eps, skipped := Endpoints(trajectories, time.Duration(d)*driftval.Day, every)
		fields := logrus.Fields{
			"duration":  d,
			"endpoints": len(eps),
			"skipped":   skipped,
		}
		if len(eps) == 0 {
			log.WithFields(fields).Warn("no endpoints")
			continue
		}
		if err := WriteEndpoints(EndpointFile(dir, d), eps); err != nil {
			return err
		}
		log.WithFields(fields).Info("wrote endpoints")
	}
	return nil
}
