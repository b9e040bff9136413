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

package ncf

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

func writeTestFile(t *testing.T) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "test.nc")
	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{2, 2, 3})
	h.AddAttribute("", "title", "test file")
	h.AddVariable("u", []string{"time", "y", "x"}, []float32{0})
	h.AddAttribute("u", "_FillValue", []float32{-999})
	h.AddVariable("packed", []string{"x"}, []int16{0})
	h.AddAttribute("packed", "scale_factor", []float64{0.5})
	h.AddAttribute("packed", "add_offset", []float64{10})
	h.AddVariable("id", []string{"x"}, []int32{0})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "days since 2010-01-01 00:00:00")
	h.Define()

	f, err := Create(name, h)
	if err != nil {
		t.Fatal(err)
	}
	u := sparse.ZerosDense(2, 2, 3)
	for i := range u.Elements {
		u.Elements[i] = float64(i)
	}
	u.Set(math.NaN(), 1, 0, 1)
	if err := f.WriteDense("u", u); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteDense("id", sparse.ZerosDense(3)); err == nil {
		t.Error("dense writes to an integer variable should fail")
	}
	if err := f.Write("packed", []int16{0, 2, 4}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write("id", []int32{7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write("time", []float64{0, 1.5}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write("id", []int32{1}); err == nil {
		t.Error("writing the wrong number of values should fail")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestReadWrite(t *testing.T) {
	f, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if s := f.Text("", "title"); s != "test file" {
		t.Errorf("title: have %q", s)
	}
	if !f.Has("u") || f.Has("v") {
		t.Error("Has gave the wrong answer")
	}

	u1, err := f.Float64s("u", 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{6, math.NaN(), 8, 9, 10, 11}
	if len(u1) != len(want) {
		t.Fatalf("length: have %d, want %d", len(u1), len(want))
	}
	for i, w := range want {
		if math.IsNaN(w) != math.IsNaN(u1[i]) || (!math.IsNaN(w) && w != u1[i]) {
			t.Errorf("u[1][%d]: have %g, want %g", i, u1[i], w)
		}
	}

	r, n, err := f.reader("u", []int{1})
	if err != nil {
		t.Fatal(err)
	}
	raw := r.Zero(n)
	if _, err := r.Read(raw); err != nil {
		t.Fatal(err)
	}
	if have := raw.([]float32)[1]; have != -999 {
		t.Errorf("NaN should be stored as the fill value; have %g", have)
	}

	row, err := f.Dense("u", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(row.Shape) != 1 || row.Shape[0] != 3 || row.Get(2) != 5 {
		t.Errorf("u[0][1]: have shape %v and values %v", row.Shape, row.Elements)
	}

	all, err := f.Dense("u")
	if err != nil {
		t.Fatal(err)
	}
	if all.Get(1, 1, 2) != 11 {
		t.Errorf("u[1][1][2]: have %g, want 11", all.Get(1, 1, 2))
	}

	packed, err := f.Float64s("packed")
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range []float64{10, 11, 12} {
		if packed[i] != w {
			t.Errorf("packed[%d]: have %g, want %g", i, packed[i], w)
		}
	}

	ids, err := f.Ints("id")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 7 || ids[2] != 9 {
		t.Errorf("ids: have %v", ids)
	}

	times, err := f.Times("time")
	if err != nil {
		t.Fatal(err)
	}
	if wt := time.Date(2010, 1, 2, 12, 0, 0, 0, time.UTC); !times[1].Equal(wt) {
		t.Errorf("time: have %v, want %v", times[1], wt)
	}

	if _, err := f.Float64s("u", 2); err == nil {
		t.Error("out of range index should fail")
	}
	if _, err := f.Float64s("missing"); err == nil {
		t.Error("missing variable should fail")
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		units string
		step  time.Duration
		epoch time.Time
		err   bool
	}{
		{units: "seconds since 1970-01-01 00:00:00", step: time.Second, epoch: time.Unix(0, 0).UTC()},
		{units: "days since 1950-01-01T00:00:00Z", step: 24 * time.Hour, epoch: time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)},
		{units: "hours since 2007-6-1", step: time.Hour, epoch: time.Date(2007, 6, 1, 0, 0, 0, 0, time.UTC)},
		{units: "seconds since 1900-01-01 00:00:00.0", step: time.Second, epoch: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{units: "fortnights since 2000-01-01", err: true},
		{units: "seconds", err: true},
	}
	for _, test := range tests {
		t.Run(test.units, func(t *testing.T) {
			step, epoch, err := ParseUnits(test.units)
			if test.err {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if step != test.step || !epoch.Equal(test.epoch) {
				t.Errorf("have %v since %v, want %v since %v", step, epoch, test.step, test.epoch)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	if o := Offset(0.25, 24*time.Hour); o != 6*time.Hour {
		t.Errorf("have %v, want 6h", o)
	}
	if o := Offset(3599.9999, time.Second); o != time.Hour {
		t.Errorf("have %v, want 1h", o)
	}
}

func TestWriteAt(t *testing.T) {
	name := filepath.Join(t.TempDir(), "slabs.nc")
	h := cdf.NewHeader([]string{"time", "x"}, []int{2, 3})
	h.AddVariable("w", []string{"time", "x"}, []float64{0})
	h.Define()
	f, err := Create(name, h)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.WriteAt("w", []float64{4, 5, 6}, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteAt("w", []float64{1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteAt("w", []float64{1, 2}, 0); err == nil {
		t.Error("writing a short slab should fail")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := f.Float64s("w")
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		if w[i] != want {
			t.Errorf("w[%d]: have %g, want %g", i, w[i], want)
		}
	}
}
