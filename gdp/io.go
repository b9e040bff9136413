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
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"

	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/internal/ncf"
)

const timeUnits = "seconds since 1970-01-01 00:00:00"

// WriteStarts writes starts to the NetCDF file name.
func WriteStarts(name string, starts []driftval.Start) error {
	if len(starts) == 0 {
		return errors.New("gdp: no starts to write")
	}
	h := cdf.NewHeader([]string{"start"}, []int{len(starts)})
	h.AddAttribute("", "comment", "particle release positions chosen from drifter observations")
	h.AddVariable("id", []string{"start"}, []int32{0})
	h.AddAttribute("id", "long_name", "index of the observation in the drifter ragged arrays")
	h.AddVariable("drifter", []string{"start"}, []float64{0})
	h.AddAttribute("drifter", "long_name", "drifter ID")
	h.AddVariable("lon", []string{"start"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("lat", []string{"start"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("time", []string{"start"}, []float64{0})
	h.AddAttribute("time", "units", timeUnits)
	h.Define()

	id := make([]int32, len(starts))
	dr := make([]float64, len(starts))
	lon := make([]float64, len(starts))
	lat := make([]float64, len(starts))
	t := make([]float64, len(starts))
	for i, s := range starts {
		if s.ID > math.MaxInt32 || s.ID < math.MinInt32 {
			return fmt.Errorf("gdp: start ID %d does not fit in 32 bits", s.ID)
		}
		id[i] = int32(s.ID)
		dr[i] = float64(s.Drifter)
		lon[i], lat[i] = s.X, s.Y
		t[i] = float64(s.Time.Unix())
	}

	f, err := ncf.Create(name, h)
	if err != nil {
		return fmt.Errorf("gdp: %w", err)
	}
	for _, w := range []struct {
		v    string
		data interface{}
	}{{"id", id}, {"drifter", dr}, {"lon", lon}, {"lat", lat}, {"time", t}} {
		if err := f.Write(w.v, w.data); err != nil {
			f.Close()
			return fmt.Errorf("gdp: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("gdp: %v", err)
	}
	return nil
}

// ReadStarts reads starts written by WriteStarts.
func ReadStarts(name string) ([]driftval.Start, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, fmt.Errorf("gdp: %w", err)
	}
	defer f.Close()
	id, err := f.Ints("id")
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	vals := make(map[string][]float64)
	for _, v := range []string{"drifter", "lon", "lat"} {
		if vals[v], err = f.Float64s(v); err != nil {
			return nil, fmt.Errorf("gdp: %v", err)
		}
	}
	times, err := f.Times("time")
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	o := make([]driftval.Start, len(id))
	for i := range o {
		o[i] = driftval.Start{
			ID:      id[i],
			Drifter: int(vals["drifter"][i]),
			Point:   geom.Point{X: vals["lon"][i], Y: vals["lat"][i]},
			Time:    times[i],
		}
	}
	return o, nil
}

// wgs84 is the projection of exported shapefiles.
const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// ExportStarts writes starts as a point shapefile with a matching .prj
// file. Any extension of name is replaced with .shp.
func ExportStarts(name string, starts []driftval.Start) error {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	fields := []goshp.Field{
		goshp.NumberField("id", 10),
		goshp.NumberField("drifter", 18),
		goshp.StringField("time", 20),
		goshp.FloatField("lon", 14, 8),
		goshp.FloatField("lat", 14, 8),
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("gdp: creating start shapefile: %v", err)
	}
	for _, s := range starts {
		if err := e.EncodeFields(s.Point, s.ID, s.Drifter, s.Time.UTC().Format(time.RFC3339), s.X, s.Y); err != nil {
			e.Close()
			return fmt.Errorf("gdp: writing start shapefile: %v", err)
		}
	}
	// The shapefile encoder reports no close error.
	e.Close()

	f, err := os.Create(base + ".prj")
	if err != nil {
		return fmt.Errorf("gdp: creating prj file: %v", err)
	}
	if _, err := fmt.Fprint(f, wgs84); err != nil {
		f.Close()
		return fmt.Errorf("gdp: writing prj file: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("gdp: closing prj file: %v", err)
	}
	return nil
}
