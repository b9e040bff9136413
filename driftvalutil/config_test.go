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

package driftvalutil

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/driftval"
)

func TestCheckOutputFile(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("DRIFTVAL_TEST_DIR", dir)
	defer os.Unsetenv("DRIFTVAL_TEST_DIR")

	if _, err := checkOutputFile(context.Background(), ""); err == nil {
		t.Error("a blank output file should fail")
	}
	f, err := checkOutputFile(context.Background(), "${DRIFTVAL_TEST_DIR}/stats.csv")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "stats.csv"); f != want {
		t.Errorf("have %s, want %s", f, want)
	}
	if _, err := checkOutputFile(context.Background(), filepath.Join(dir, "missing", "stats.csv")); err == nil {
		t.Error("a missing output directory should fail")
	}
	if _, err := checkOutputFile(context.Background(), "file://"+dir+"/stats.csv"); err != nil {
		t.Errorf("file blob: %v", err)
	}
}

func TestDividers(t *testing.T) {
	d, err := dividers(-1, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{-1, -0.5, 0, 0.5, 1}; !reflect.DeepEqual(d, want) {
		t.Errorf("have %v, want %v", d, want)
	}
	if _, err := dividers(1, -1, 5); err == nil {
		t.Error("max < min should fail")
	}
	if _, err := dividers(-1, 1, 1); err == nil {
		t.Error("a single divider should fail")
	}
}

func TestDispersalConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Durations", []int{1, 5})
	cfg.Set("Method", "planesailing")
	c, err := dispersalConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := driftval.Config{Durations: []int{1, 5}, Method: driftval.PlaneSailing}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("have %+v, want %+v", c, want)
	}

	cfg.Set("Method", "rhumbline")
	if _, err := dispersalConfig(cfg); err == nil {
		t.Error("an invalid method should fail")
	}
	cfg.Set("Method", "greatcircle")
	cfg.Set("Durations", []int{})
	if _, err := dispersalConfig(cfg); err == nil {
		t.Error("no durations should fail")
	}
}

func TestDepthAvgConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("DepthAvg.InputDir", "in")
	cfg.Set("DepthAvg.OutputDir", "out")
	cfg.Set("DepthAvg.UPattern", "u_%d.nc")
	cfg.Set("DepthAvg.VPattern", "v_%d.nc")
	cfg.Set("DepthAvg.Depths", []string{"14", "16"})
	cfg.Set("DepthAvg.Processes", 2)
	c, err := depthAvgConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.InputDir != "in" || c.OutputDir != "out" || c.UPattern != "u_%d.nc" || c.Processes != 2 {
		t.Errorf("have %+v", c)
	}
	if !reflect.DeepEqual(c.Depths, []float64{14, 16}) {
		t.Errorf("depths: have %v", c.Depths)
	}
	if c.UVar != "vozocrtx" {
		t.Errorf("defaults should be kept, have UVar %s", c.UVar)
	}

	cfg.Set("DepthAvg.Depths", []string{"14", "deep"})
	if _, err := depthAvgConfig(cfg); err == nil {
		t.Error("an invalid depth should fail")
	}
}

func TestTrackConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Track.DtMinutes", 30)
	cfg.Set("OutputEveryHours", 3)
	cfg.Set("MaxAgeDays", 5)
	cfg.Set("Track.EnsembleSize", 4)
	cfg.Set("Track.EnsembleRadius", 2.5)
	c := trackConfig(cfg)
	if c.Dt != 30*time.Minute || c.OutputEvery != 3*time.Hour || c.Duration != 5*driftval.Day ||
		c.EnsembleSize != 4 || c.EnsembleRadius != 2.5 {
		t.Errorf("have %+v", c)
	}
	if err := c.Check(); err != nil {
		t.Error(err)
	}
}

func TestTrackConfigDefaults(t *testing.T) {
	cfg := viper.New()
	for _, o := range options {
		cfg.SetDefault(o.name, o.defaultVal)
	}
	c := trackConfig(cfg)
	if c.EnsembleSize < 2 || c.EnsembleRadius <= 0 {
		t.Errorf("default ensemble has %d members over %g km", c.EnsembleSize, c.EnsembleRadius)
	}
	if err := c.Check(); err != nil {
		t.Error(err)
	}
}

func TestGetIntSlice(t *testing.T) {
	cfg := viper.New()
	for _, test := range []struct {
		in   interface{}
		want []int
	}{
		{in: []int{1, 2}, want: []int{1, 2}},
		{in: "[1,2,3]", want: []int{1, 2, 3}},
		{in: "4, 5", want: []int{4, 5}},
		{in: "[]", want: []int{}},
	} {
		cfg.Set("Durations", test.in)
		have, err := getIntSlice(cfg, "Durations")
		if err != nil {
			t.Errorf("%v: %v", test.in, err)
			continue
		}
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("%v: have %v, want %v", test.in, have, test.want)
		}
	}
	cfg.Set("Durations", "1,x")
	if _, err := getIntSlice(cfg, "Durations"); err == nil {
		t.Error("an invalid value should fail")
	}
}
