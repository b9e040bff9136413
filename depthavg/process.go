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

package depthavg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/spatialmodel/driftval/internal/ncf"
)

// fill marks missing velocities in output files.
const fill float32 = 1e20

// TimeUnits are the units of the time variable in output files.
const TimeUnits = "seconds since 1970-01-01 00:00:00"

// Config specifies where velocity files are and how to average them.
type Config struct {
	// InputDir holds the daily model velocity files.
	InputDir string

	// OutputDir receives the yearly depth-averaged files.
	OutputDir string

	// TempDir receives the daily depth-averaged files. It defaults to
	// OutputDir.
	TempDir string

	// UPattern and VPattern are the names of the daily u and v files,
	// formatted with the day ordinal.
	UPattern, VPattern string

	// UVar and VVar are the velocity variables in the input files, with
	// dimensions (time, depth, y, x).
	UVar, VVar string

	// DepthVar, TimeVar, LonVar and LatVar are the coordinate variables in
	// the input files.
	DepthVar, TimeVar, LonVar, LatVar string

	// Depths are the depths [m] the velocity profile is sampled at before
	// averaging.
	Depths []float64

	// Processes is the number of days processed at once. Zero means
	// GOMAXPROCS.
	Processes int

	// SkipMissing skips days without input files instead of failing.
	SkipMissing bool

	// Institution, Source and Comment are written as global attributes of
	// the yearly files.
	Institution, Source, Comment string
}

// DefaultConfig returns the configuration for Mercator PSY4 files and a
// 6 m drogue centred at 15 m.
func DefaultConfig() Config {
	return Config{
		UPattern:    "umerc_phy_%d.nc",
		VPattern:    "vmerc_phy_%d.nc",
		UVar:        "vozocrtx",
		VVar:        "vomecrty",
		DepthVar:    "deptht",
		TimeVar:     "time_counter",
		LonVar:      "nav_lon",
		LatVar:      "nav_lat",
		Depths:      []float64{12, 15, 18},
		Institution: "University of New Hampshire",
		Source:      "Original model data from the Mercator Ocean 1/12 degree physical model PSY4V3R1 on the native model grid",
	}
}

// component describes one velocity component of the output.
type component struct {
	name    string // u or v
	in, out string // variable names
	pattern string

	title, longName, standardName string
}

func (c Config) components() [2]component {
	return [2]component{
		{
			name:         "u",
			in:           c.UVar,
			out:          "uAvg",
			pattern:      c.UPattern,
			title:        "Depth-averaged u-velocity",
			longName:     "Zonal Velocity",
			standardName: "sea_water_x_velocity",
		},
		{
			name:         "v",
			in:           c.VVar,
			out:          "vAvg",
			pattern:      c.VPattern,
			title:        "Depth-averaged v-velocity",
			longName:     "Meridional Velocity",
			standardName: "sea_water_y_velocity",
		},
	}
}

// Check returns an error if the configuration cannot be used.
func (c Config) Check() error {
	switch {
	case c.InputDir == "":
		return errors.New("depthavg: no input directory")
	case c.OutputDir == "":
		return errors.New("depthavg: no output directory")
	case len(c.Depths) == 0:
		return errors.New("depthavg: no depths")
	case c.UPattern == "" || c.VPattern == "":
		return errors.New("depthavg: missing input file pattern")
	}
	return nil
}

func (c Config) tempDir() string {
	if c.TempDir == "" {
		return c.OutputDir
	}
	return c.TempDir
}

func (c Config) centre() float64 {
	var s float64
	for _, d := range c.Depths {
		s += d
	}
	return s / float64(len(c.Depths))
}

// YearlyName returns the name of the yearly output file of component
// "u" or "v".
func (c Config) YearlyName(year int, comp string) string {
	length := c.Depths[len(c.Depths)-1] - c.Depths[0]
	return filepath.Join(c.OutputDir, fmt.Sprintf("depthAvg_%gmDrogue_%gmCenter_%d_%s.nc",
		length, c.centre(), year, comp))
}

// DailyName returns the name of the daily output file of component
// "u" or "v".
func (c Config) DailyName(day time.Time, comp string) string {
	return filepath.Join(c.tempDir(), fmt.Sprintf("depthAvg_%d_%s.nc", Ordinal(day), comp))
}

// Day averages the velocities of a single day and returns the names of
// the daily u and v files. Daily files that already exist are reused.
func (c Config) Day(ctx context.Context, day time.Time) (u, v string, err error) {
	var names [2]string
	for i, comp := range c.components() {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		names[i] = c.DailyName(day, comp.name)
		if _, err := os.Stat(names[i]); err == nil {
			continue
		}
		in := filepath.Join(c.InputDir, fmt.Sprintf(comp.pattern, Ordinal(day)))
		if err := c.averageFile(in, names[i], comp, day); err != nil {
			return "", "", err
		}
	}
	return names[0], names[1], nil
}

// averageFile averages the first record of comp.in in file in and writes
// the result to out.
func (c Config) averageFile(in, out string, comp component, day time.Time) error {
	f, err := ncf.Open(in)
	if err != nil {
		return fmt.Errorf("depthavg: %w", err)
	}
	defer f.Close()

	levels, err := f.Float64s(c.DepthVar)
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	w, err := Weights(levels, c.Depths)
	if err != nil {
		return fmt.Errorf("depthavg: %s: %v", in, err)
	}
	vel, err := f.Dense(comp.in, 0)
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	avg, err := Average(vel, w)
	if err != nil {
		return fmt.Errorf("depthavg: %s: %v", in, err)
	}
	lon, err := f.Dense(c.LonVar)
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	lat, err := f.Dense(c.LatVar)
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	t := day
	if f.Has(c.TimeVar) {
		times, err := f.Times(c.TimeVar, 0)
		if err != nil {
			return fmt.Errorf("depthavg: %v", err)
		}
		if len(times) > 0 && !times[0].IsZero() {
			t = times[0]
		}
	}

	o, err := c.create(out, comp, 1, lon, lat, false)
	if err != nil {
		return err
	}
	if err := o.Write("time", []float64{float64(t.Unix())}); err != nil {
		o.Close()
		return fmt.Errorf("depthavg: %v", err)
	}
	if err := o.WriteAt(comp.out, filled(avg.Elements), 0); err != nil {
		o.Close()
		return fmt.Errorf("depthavg: %v", err)
	}
	if err := o.Close(); err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	return nil
}

// create creates an output file for comp with nt time steps on the grid
// given by lon and lat, and writes the coordinate variables other than
// time. Yearly files also get descriptive global attributes.
func (c Config) create(name string, comp component, nt int, lon, lat *sparse.DenseArray, yearly bool) (*ncf.File, error) {
	if len(lon.Shape) != 2 || !sameShape(lon.Shape, lat.Shape) {
		return nil, fmt.Errorf("depthavg: longitude shape %v and latitude shape %v are not the same 2-D grid", lon.Shape, lat.Shape)
	}
	ny, nx := lon.Shape[0], lon.Shape[1]
	h := cdf.NewHeader([]string{"time", "depth", "y", "x"}, []int{nt, 1, ny, nx})
	if yearly {
		h.AddAttribute("", "title", fmt.Sprintf("%s (%gm drogue length centered at %gm)",
			comp.title, c.Depths[len(c.Depths)-1]-c.Depths[0], c.centre()))
		h.AddAttribute("", "institution", c.Institution)
		h.AddAttribute("", "source", c.Source)
		h.AddAttribute("", "comment", c.Comment)
	}
	h.AddVariable(comp.out, []string{"time", "depth", "y", "x"}, []float32{0})
	h.AddAttribute(comp.out, "units", "m s-1")
	h.AddAttribute(comp.out, "short_name", comp.out)
	h.AddAttribute(comp.out, "long_name", comp.longName)
	h.AddAttribute(comp.out, "standard_name", comp.standardName)
	h.AddAttribute(comp.out, "_FillValue", []float32{fill})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", TimeUnits)
	h.AddVariable("depth", []string{"depth"}, []float64{0})
	h.AddAttribute("depth", "units", "m")
	h.AddVariable("nav_lon", []string{"y", "x"}, []float32{0})
	h.AddAttribute("nav_lon", "units", "degrees_east")
	h.AddAttribute("nav_lon", "_FillValue", []float32{fill})
	h.AddVariable("nav_lat", []string{"y", "x"}, []float32{0})
	h.AddAttribute("nav_lat", "units", "degrees_north")
	h.AddAttribute("nav_lat", "_FillValue", []float32{fill})
	h.Define()

	f, err := ncf.Create(name, h)
	if err != nil {
		return nil, fmt.Errorf("depthavg: %v", err)
	}
	err = f.Write("depth", []float64{c.centre()})
	if err == nil {
		err = f.WriteDense("nav_lon", lon)
	}
	if err == nil {
		err = f.WriteDense("nav_lat", lat)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("depthavg: %v", err)
	}
	return f, nil
}

// Year averages every day of year and combines the daily files into
// yearly u and v files, whose names are returned. It returns ErrExists
// if either yearly file is already present.
func (c Config) Year(ctx context.Context, year int, log logrus.FieldLogger) (u, v string, err error) {
	if err := c.Check(); err != nil {
		return "", "", err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	comps := c.components()
	for _, comp := range comps {
		name := c.YearlyName(year, comp.name)
		if _, err := os.Stat(name); err == nil {
			return "", "", fmt.Errorf("%w: %s", ErrExists, name)
		}
	}
	for _, dir := range []string{c.OutputDir, c.tempDir()} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return "", "", fmt.Errorf("depthavg: %v", err)
		}
	}

	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := first; d.Year() == year; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	daily := make([][2]string, len(days))

	nprocs := c.Processes
	if nprocs <= 0 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nprocs)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			if c.SkipMissing && !c.hasInputs(day) {
				log.WithFields(logrus.Fields{"date": day.Format("2006-01-02"), "ordinal": Ordinal(day)}).
					Warn("depthavg: skipping day without input files")
				return nil
			}
			un, vn, err := c.Day(gctx, day)
			if err != nil {
				return err
			}
			daily[i] = [2]string{un, vn}
			log.WithFields(logrus.Fields{"date": day.Format("2006-01-02")}).Debug("depthavg: averaged day")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	var names [2]string
	for i, comp := range comps {
		var files []string
		for _, d := range daily {
			if d[i] != "" {
				files = append(files, d[i])
			}
		}
		if len(files) == 0 {
			return "", "", fmt.Errorf("depthavg: no input files for year %d in %s", year, c.InputDir)
		}
		names[i] = c.YearlyName(year, comp.name)
		if err := c.Combine(ctx, names[i], files, comp.name); err != nil {
			return "", "", err
		}
		log.WithFields(logrus.Fields{"file": names[i], "days": len(files)}).Info("depthavg: wrote yearly file")
	}
	return names[0], names[1], nil
}

func (c Config) hasInputs(day time.Time) bool {
	for _, comp := range c.components() {
		if _, err := os.Stat(filepath.Join(c.InputDir, fmt.Sprintf(comp.pattern, Ordinal(day)))); err != nil {
			return false
		}
	}
	return true
}

// Combine concatenates the daily files of component "u" or "v" along
// time into the file name.
func (c Config) Combine(ctx context.Context, name string, files []string, comp string) error {
	var cp component
	for _, x := range c.components() {
		if x.name == comp {
			cp = x
		}
	}
	if cp.name == "" {
		return fmt.Errorf("depthavg: invalid component %q", comp)
	}
	if len(files) == 0 {
		return errors.New("depthavg: no files to combine")
	}

	f0, err := ncf.Open(files[0])
	if err != nil {
		return fmt.Errorf("depthavg: %w", err)
	}
	lon, err := f0.Dense("nav_lon")
	if err != nil {
		f0.Close()
		return fmt.Errorf("depthavg: %v", err)
	}
	lat, err := f0.Dense("nav_lat")
	f0.Close()
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}

	o, err := c.create(name, cp, len(files), lon, lat, true)
	if err != nil {
		return err
	}
	times := make([]float64, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			o.Close()
			return err
		}
		if err := copyDay(o, file, cp.out, i, times); err != nil {
			o.Close()
			return err
		}
	}
	if err := o.Write("time", times); err != nil {
		o.Close()
		return fmt.Errorf("depthavg: %v", err)
	}
	if err := o.Close(); err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	return nil
}

// copyDay copies the single time step of daily file name into record i
// of o.
func copyDay(o *ncf.File, name, v string, i int, times []float64) error {
	f, err := ncf.Open(name)
	if err != nil {
		return fmt.Errorf("depthavg: %w", err)
	}
	defer f.Close()
	data, err := f.Float64s(v, 0)
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	t, err := f.Float64s("time")
	if err != nil {
		return fmt.Errorf("depthavg: %v", err)
	}
	if len(t) != 1 {
		return fmt.Errorf("depthavg: %s has %d time steps, want 1", name, len(t))
	}
	times[i] = t[0]
	if err := o.WriteAt(v, filled(data), i); err != nil {
		return fmt.Errorf("depthavg: %s: %v", name, err)
	}
	return nil
}

// filled converts data to float32, replacing NaN with the fill value.
func filled(data []float64) []float32 {
	o := make([]float32, len(data))
	for i, x := range data {
		if math.IsNaN(x) {
			o[i] = fill
			continue
		}
		o[i] = float32(x)
	}
	return o
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
