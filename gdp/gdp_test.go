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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	goshp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/internal/ncf"
)

var t0 = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

type testDrifter struct {
	id       int
	drogue   float64
	start    time.Time
	n        int
	drogueOn func(k int) bool
}

// testDrifters are sampled every 6 hours and move 0.1 degrees east per
// sample from (-70, 40). The first one loses its drogue after 92
// samples.
var testDrifters = []testDrifter{
	{id: 101, drogue: 15, start: t0, n: 100, drogueOn: func(k int) bool { return k < 92 }},
	{id: 202, drogue: 15, start: time.Date(2006, 6, 1, 0, 0, 0, 0, time.UTC), n: 4},
	{id: 303, drogue: 10, start: t0, n: 4},
}

func writeRagged(t *testing.T, drifters []testDrifter, rowsizeError bool) string {
	t.Helper()
	nObs := 0
	for _, d := range drifters {
		nObs += d.n
	}
	h := cdf.NewHeader([]string{"traj", "obs"}, []int{len(drifters), nObs})
	h.AddVariable("ID", []string{"traj"}, []float64{0})
	h.AddVariable("rowsize", []string{"traj"}, []int32{0})
	h.AddVariable("DrogueCenterDepth", []string{"traj"}, []float32{0})
	h.AddVariable("lon", []string{"obs"}, []float64{0})
	h.AddVariable("lat", []string{"obs"}, []float64{0})
	h.AddVariable("time", []string{"obs"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01 00:00:00")
	h.AddVariable("drogue_status", []string{"obs"}, []uint8{0})
	h.Define()

	var id []float64
	var rowsize []int32
	var depth []float32
	var lon, lat, tm []float64
	var status []uint8
	for _, d := range drifters {
		id = append(id, float64(d.id))
		rowsize = append(rowsize, int32(d.n))
		depth = append(depth, float32(d.drogue))
		for k := 0; k < d.n; k++ {
			lon = append(lon, -70+0.1*float64(k))
			lat = append(lat, 40)
			tm = append(tm, float64(d.start.Add(time.Duration(k)*6*time.Hour).Unix()))
			var s uint8 = 1
			if d.drogueOn != nil && !d.drogueOn(k) {
				s = 0
			}
			status = append(status, s)
		}
	}
	if rowsizeError {
		rowsize[0]++
	}

	name := filepath.Join(t.TempDir(), "gdp_ragged.nc")
	f, err := ncf.Create(name, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range []struct {
		v    string
		data interface{}
	}{
		{"ID", id}, {"rowsize", rowsize}, {"DrogueCenterDepth", depth},
		{"lon", lon}, {"lat", lat}, {"time", tm}, {"drogue_status", status},
	} {
		if err := f.Write(w.v, w.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func readTestData(t *testing.T) *Dataset {
	t.Helper()
	d, err := Read(writeRagged(t, testDrifters, false))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func startIDs(s []driftval.Start) []int {
	var o []int
	for _, x := range s {
		o = append(o, x.ID)
	}
	return o
}

func TestRead(t *testing.T) {
	d := readTestData(t)
	if len(d.Drifters) != 3 || d.NumObs() != 108 {
		t.Fatalf("have %d drifters and %d observations", len(d.Drifters), d.NumObs())
	}
	dr, o, err := d.Observation(101)
	if err != nil {
		t.Fatal(err)
	}
	if dr.ID != 202 || o.Index != 101 || !o.Time.Equal(testDrifters[1].start.Add(6*time.Hour)) {
		t.Errorf("observation 101: have drifter %d, observation %+v", dr.ID, o)
	}
	if d.Drifters[0].Obs[95].DrogueOn {
		t.Error("drogue should be off at observation 95")
	}
	if d.Drifters[2].DrogueCenterDepth != 10 {
		t.Errorf("drogue depth: have %g, want 10", d.Drifters[2].DrogueCenterDepth)
	}
	if _, _, err := d.Observation(108); err == nil {
		t.Error("out of range observation should fail")
	}

	if _, err := Read(writeRagged(t, testDrifters, true)); err == nil {
		t.Error("inconsistent row sizes should fail")
	}
}

func TestStarts(t *testing.T) {
	d := readTestData(t)
	region := geom.Polygon{{
		{X: -70.5, Y: 39}, {X: -67.95, Y: 39}, {X: -67.95, Y: 41}, {X: -70.5, Y: 41}, {X: -70.5, Y: 39},
	}}
	depth := make([]float64, d.NumObs())
	for i := range depth {
		depth[i] = -100
	}
	depth[0] = -1000

	tests := []struct {
		name string
		cfg  func(*StartConfig)
		want []int
	}{
		{name: "default", cfg: func(*StartConfig) {}, want: []int{0, 40, 80}},
		{name: "region", cfg: func(c *StartConfig) { c.Region = region }, want: []int{0}},
		{name: "depth", cfg: func(c *StartConfig) { c.Depth = depth }, want: []int{1, 41, 81}},
		{name: "year", cfg: func(c *StartConfig) { c.FirstYear = 2000 }, want: []int{0, 40, 80, 100}},
		{name: "drogue", cfg: func(c *StartConfig) { c.DrogueCenterDepth = 10 }, want: []int{104}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultStartConfig()
			test.cfg(&cfg)
			s, err := d.Starts(cfg, quiet())
			if err != nil {
				t.Fatal(err)
			}
			if have := startIDs(s); !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}

	cfg := DefaultStartConfig()
	cfg.Depth = []float64{1}
	if _, err := d.Starts(cfg, quiet()); err == nil {
		t.Error("wrong number of depths should fail")
	}
}

func TestSpace(t *testing.T) {
	obs := func(hours ...int) []Observation {
		var o []Observation
		for i, h := range hours {
			o = append(o, Observation{Index: i, Time: t0.Add(time.Duration(h) * time.Hour)})
		}
		return o
	}
	tests := []struct {
		hours []int
		want  []int
	}{
		{hours: nil, want: nil},
		{hours: []int{0}, want: nil},
		{hours: []int{0, 6}, want: []int{0}},
		{hours: []int{0, 100, 239, 240, 250, 480, 481}, want: []int{0, 3, 5}},
		{hours: []int{0, 500, 501}, want: []int{0, 1}},
	}
	for _, test := range tests {
		var have []int
		for _, o := range space(obs(test.hours...), 10*driftval.Day) {
			have = append(have, o.Index)
		}
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("%v: have %v, want %v", test.hours, have, test.want)
		}
	}
}

func TestTrajectories(t *testing.T) {
	d := readTestData(t)
	starts, err := d.Starts(DefaultStartConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	trajs, err := d.Trajectories(starts, 60*driftval.Day)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(trajs[0].Samples); n != 92 {
		t.Errorf("start 0: have %d samples, want 92", n)
	}
	tr := trajs[80]
	if n := len(tr.Samples); n != 12 {
		t.Errorf("start 80: have %d samples, want 12", n)
	}
	if tr.Drifter != 101 || tr.Samples[0].Age != 0 || tr.Samples[11].Age != 66*time.Hour {
		t.Errorf("start 80: have drifter %d, ages %v to %v", tr.Drifter, tr.Samples[0].Age, tr.Samples[11].Age)
	}
	k := 84
	if p, ok := tr.At(driftval.Day); !ok || p.X != -70+0.1*float64(k) {
		t.Errorf("start 80 after a day: have %v, %v", p, ok)
	}

	short, err := d.Trajectories(starts[:1], 5*driftval.Day)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(short[0].Samples); n != 21 {
		t.Errorf("5 days: have %d samples, want 21", n)
	}
}

func TestLandMask(t *testing.T) {
	u := []MaskNode{
		{Point: geom.Point{X: 0, Y: 0}, Wet: true},
		{Point: geom.Point{X: 1, Y: 0}},
		{Point: geom.Point{X: 5, Y: 5}},
	}
	v := []MaskNode{
		{Point: geom.Point{X: 0, Y: 1}},
		{Point: geom.Point{X: 1, Y: 1}},
		{Point: geom.Point{X: 2, Y: 1}},
	}
	m, err := NewLandMask(u, v)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		p    geom.Point
		want bool
	}{
		{p: geom.Point{X: 0.1, Y: 0}, want: true},
		{p: geom.Point{X: 0.9, Y: 0.2}, want: true},
		{p: geom.Point{X: 5, Y: 5.1}, want: false},
		{p: geom.Point{X: 4, Y: 4}, want: false},
	}
	for _, test := range tests {
		if have := m.Wet(test.p); have != test.want {
			t.Errorf("%v: have %v, want %v", test.p, have, test.want)
		}
	}
	if _, err := NewLandMask(u[:1], v); err == nil {
		t.Error("a mask with a single node should fail")
	}
}

func TestParseRegion(t *testing.T) {
	const gj = `{"type": "MultiPolygon", "coordinates": [
		[[[-71, 39], [-69, 39], [-69, 41], [-71, 41], [-71, 39]]],
		[[[10, 10], [11, 10], [11, 11], [10, 10]]]]}`
	r, err := ParseRegion(strings.NewReader(gj))
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 2 {
		t.Fatalf("have %d rings, want 2", len(r))
	}
	if (geom.Point{X: -70, Y: 40}).Within(r) != geom.Inside {
		t.Error("point should be inside the region")
	}
	if (geom.Point{X: 0, Y: 0}).Within(r) != geom.Outside {
		t.Error("point should be outside the region")
	}
	if _, err := ParseRegion(strings.NewReader(`{"type": "Point", "coordinates": [0, 0]}`)); err == nil {
		t.Error("a point region should fail")
	}
}

func TestStartFiles(t *testing.T) {
	d := readTestData(t)
	starts, err := d.Starts(DefaultStartConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	name := filepath.Join(dir, "starts.nc")
	if err := WriteStarts(name, starts); err != nil {
		t.Fatal(err)
	}
	s2, err := ReadStarts(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(s2) != len(starts) {
		t.Fatalf("have %d starts, want %d", len(s2), len(starts))
	}
	for i := range starts {
		a, b := starts[i], s2[i]
		if a.ID != b.ID || a.Drifter != b.Drifter || a.Point != b.Point || !a.Time.Equal(b.Time) {
			t.Errorf("start %d: have %+v, want %+v", i, b, a)
		}
	}
	if err := WriteStarts(filepath.Join(dir, "empty.nc"), nil); err == nil {
		t.Error("writing no starts should fail")
	}

	if err := ExportStarts(filepath.Join(dir, "starts.geojson"), starts); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "starts.prj")); err != nil {
		t.Error(err)
	}
	r, err := goshp.Open(filepath.Join(dir, "starts.shp"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	n := 0
	for r.Next() {
		_, shape := r.Shape()
		p, ok := shape.(*goshp.Point)
		if !ok {
			t.Fatalf("shape type %T", shape)
		}
		if p.X != starts[n].X || p.Y != starts[n].Y {
			t.Errorf("point %d: have (%g, %g), want %v", n, p.X, p.Y, starts[n].Point)
		}
		n++
	}
	if n != len(starts) {
		t.Errorf("have %d shapes, want %d", n, len(starts))
	}

	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked+".prj", os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := ExportStarts(blocked+".shp", starts); err == nil {
		t.Error("an unwritable prj file should fail")
	}
}
