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
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/internal/ncf"
)

var fieldStart = time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC)

// writeVelocityFile writes a 3x3 grid with nodes at longitudes 0, 1 and
// 2 and latitudes 10, 11 and 12 and two daily time steps.
func writeVelocityFile(t *testing.T, name, v string, vals func(rec, j, i int) float32) {
	t.Helper()
	h := cdf.NewHeader([]string{"time", "depth", "y", "x"}, []int{2, 1, 3, 3})
	h.AddVariable(v, []string{"time", "depth", "y", "x"}, []float32{0})
	h.AddAttribute(v, "_FillValue", []float32{1e20})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01 00:00:00")
	h.AddVariable("nav_lon", []string{"y", "x"}, []float32{0})
	h.AddVariable("nav_lat", []string{"y", "x"}, []float32{0})
	h.Define()
	f, err := ncf.Create(name, h)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]float32, 0, 18)
	lon := make([]float32, 0, 9)
	lat := make([]float32, 0, 9)
	for rec := 0; rec < 2; rec++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				data = append(data, vals(rec, j, i))
				if rec == 0 {
					lon = append(lon, float32(i))
					lat = append(lat, float32(10+j))
				}
			}
		}
	}
	times := []float64{float64(fieldStart.Unix()), float64(fieldStart.Add(24 * time.Hour).Unix())}
	for _, w := range []struct {
		v    string
		data interface{}
	}{{v, data}, {"time", times}, {"nav_lon", lon}, {"nav_lat", lat}} {
		if err := f.Write(w.v, w.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func testGridField(t *testing.T, radius float64) *GridField {
	t.Helper()
	dir := t.TempDir()
	u := filepath.Join(dir, "u.nc")
	v := filepath.Join(dir, "v.nc")
	writeVelocityFile(t, u, "uAvg", func(rec, j, i int) float32 {
		if rec == 0 {
			if j == 1 && i == 1 {
				return 1e20 // land
			}
			return 1
		}
		return 3 + float32(i)
	})
	writeVelocityFile(t, v, "vAvg", func(rec, j, i int) float32 { return 0.5 })
	g, err := NewGridField(GridConfig{UFiles: []string{u}, VFiles: []string{v}, SearchRadius: radius})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGridField(t *testing.T) {
	g := testGridField(t, 0.25)
	ctx := context.Background()

	first, last := g.Times()
	if !first.Equal(fieldStart) || !last.Equal(fieldStart.Add(24*time.Hour)) {
		t.Errorf("times: have %v to %v", first, last)
	}

	tests := []struct {
		name string
		t    time.Time
		p    geom.Point
		u, v float64
	}{
		{name: "node", t: fieldStart, p: geom.Point{X: 0, Y: 10}, u: 1, v: 0.5},
		{name: "near node", t: fieldStart, p: geom.Point{X: 0.1, Y: 10.1}, u: 1, v: 0.5},
		{name: "midday", t: fieldStart.Add(12 * time.Hour), p: geom.Point{X: 0, Y: 10}, u: 2, v: 0.5},
		{name: "before", t: fieldStart.Add(-time.Hour), p: geom.Point{X: 0, Y: 10}, u: 1, v: 0.5},
		{name: "after", t: fieldStart.Add(48 * time.Hour), p: geom.Point{X: 2, Y: 12}, u: 5, v: 0.5},
		{name: "land", t: fieldStart, p: geom.Point{X: 1, Y: 11}, u: 0, v: 0.5},
		{name: "land midday", t: fieldStart.Add(12 * time.Hour), p: geom.Point{X: 1, Y: 11}, u: 2, v: 0.5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			u, v, err := g.Velocity(ctx, test.t, test.p)
			if err != nil {
				t.Fatal(err)
			}
			if different(u, test.u, testTolerance) || different(v, test.v, testTolerance) {
				t.Errorf("have (%g, %g), want (%g, %g)", u, v, test.u, test.v)
			}
		})
	}

	if _, _, err := g.Velocity(ctx, fieldStart, geom.Point{X: 5, Y: 5}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("have error %v, want %v", err, ErrOutOfBounds)
	}
}

func TestGridFieldWeights(t *testing.T) {
	g := testGridField(t, 0.6)
	u, _, err := g.Velocity(context.Background(), fieldStart.Add(24*time.Hour), geom.Point{X: 0.5, Y: 10})
	if err != nil {
		t.Fatal(err)
	}
	if different(u, 3.5, testTolerance) {
		t.Errorf("have %g, want 3.5", u)
	}
}

func TestGridFieldTracking(t *testing.T) {
	g := testGridField(t, 0.75)
	cfg := DefaultConfig()
	cfg.Duration = 12 * time.Hour
	start := driftval.Start{ID: 1, Point: geom.Point{X: 0.5, Y: 10.5}, Time: fieldStart}
	d := runTracker(t, cfg, []driftval.Start{start}, g)
	p := d.Particles[0]
	if p.State != Finished || len(p.Samples) != 3 {
		t.Fatalf("state %v with %d samples", p.State, len(p.Samples))
	}
	end := p.Samples[2].Point
	if end.X <= start.X || end.Y <= start.Y {
		t.Errorf("particle should move north-east, moved from %v to %v", start.Point, end)
	}
}
