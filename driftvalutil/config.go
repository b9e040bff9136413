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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/cloud"
	"github.com/spatialmodel/driftval/depthavg"
	"github.com/spatialmodel/driftval/gdp"
	"github.com/spatialmodel/driftval/internal/ncf"
	"github.com/spatialmodel/driftval/track"
	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(ctx context.Context, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`driftval: you need to specify an output file (for example: Stats.OutputFile="stats.csv")`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		url, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		b, err := cloud.OpenBucket(ctx, url.Scheme+"://"+url.Host)
		if err != nil {
			return f, fmt.Errorf("driftval: error when checking output file location: %v", err)
		}
		b.Close()
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("driftval: the output file directory doesn't exist: %v", err)
	}
	return f, nil
}

// getIntSlice returns the integer list configuration value name. Values
// set by flags or environment variables arrive as strings such as
// "[1,2]" or "1,2".
func getIntSlice(cfg *viper.Viper, name string) ([]int, error) {
	v := cfg.Get(name)
	if s, ok := v.(string); ok {
		v = strings.Fields(strings.NewReplacer("[", " ", "]", " ", ",", " ").Replace(s))
	}
	return cast.ToIntSliceE(v)
}

func days(n int) time.Duration { return time.Duration(n) * driftval.Day }

func hours(n int) time.Duration { return time.Duration(n) * time.Hour }

// parseFloats converts configuration values to numbers.
func parseFloats(s []string) ([]float64, error) {
	o := make([]float64, len(s))
	for i, v := range s {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		o[i] = f
	}
	return o, nil
}

// dividers returns n evenly spaced histogram bin edges from min to max.
func dividers(min, max float64, n int) ([]float64, error) {
	if n < 2 || !(max > min) {
		return nil, fmt.Errorf("driftval: histogram needs at least 2 dividers and max > min; have %d dividers from %g to %g", n, min, max)
	}
	return floats.Span(make([]float64, n), min, max), nil
}

// depthAvgConfig unmarshals a viper configuration for depth averaging.
func depthAvgConfig(cfg *viper.Viper) (depthavg.Config, error) {
	c := depthavg.DefaultConfig()
	c.InputDir = os.ExpandEnv(cfg.GetString("DepthAvg.InputDir"))
	c.OutputDir = os.ExpandEnv(cfg.GetString("DepthAvg.OutputDir"))
	c.TempDir = os.ExpandEnv(cfg.GetString("DepthAvg.TempDir"))
	c.UPattern = os.ExpandEnv(cfg.GetString("DepthAvg.UPattern"))
	c.VPattern = os.ExpandEnv(cfg.GetString("DepthAvg.VPattern"))
	c.Processes = cfg.GetInt("DepthAvg.Processes")
	c.SkipMissing = cfg.GetBool("DepthAvg.SkipMissing")
	d, err := parseFloats(cfg.GetStringSlice("DepthAvg.Depths"))
	if err != nil {
		return c, fmt.Errorf("driftval: invalid DepthAvg.Depths: %v", err)
	}
	c.Depths = d
	return c, c.Check()
}

// startConfig unmarshals a viper configuration for choosing starts,
// loading the depth, land mask and region files it names.
func startConfig(e *env, cfg *viper.Viper) (gdp.StartConfig, error) {
	c := gdp.DefaultStartConfig()
	c.DrogueCenterDepth = cfg.GetFloat64("Starts.DrogueCenterDepth")
	c.FirstYear = cfg.GetInt("Starts.FirstYear")
	c.Spacing = days(cfg.GetInt("Starts.SpacingDays"))
	c.MinDepth = cfg.GetFloat64("Starts.MinDepth")

	if f := os.ExpandEnv(cfg.GetString("Starts.DepthFile")); f != "" {
		f, err := e.fetch(f)
		if err != nil {
			return c, err
		}
		if c.Depth, err = readDepth(f, cfg.GetString("Starts.DepthVar")); err != nil {
			return c, err
		}
	}

	uMask := os.ExpandEnv(cfg.GetString("Starts.LandMaskU"))
	vMask := os.ExpandEnv(cfg.GetString("Starts.LandMaskV"))
	if (uMask == "") != (vMask == "") {
		return c, fmt.Errorf("driftval: Starts.LandMaskU and Starts.LandMaskV must be set together")
	}
	if uMask != "" {
		u, err := e.fetch(uMask)
		if err != nil {
			return c, err
		}
		v, err := e.fetch(vMask)
		if err != nil {
			return c, err
		}
		if c.Land, err = gdp.LandMaskFromField(u, "uAvg", v, "vAvg"); err != nil {
			return c, err
		}
	}

	if f := os.ExpandEnv(cfg.GetString("Starts.Region")); f != "" {
		region, err := parseRegion(e, f)
		if err != nil {
			return c, err
		}
		c.Region = region
	}
	return c, nil
}

// readDepth reads the sea-floor elevation under each observation.
func readDepth(name, v string) ([]float64, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := f.Float64s(v)
	if err != nil {
		return nil, fmt.Errorf("driftval: reading depths from %s: %v", name, err)
	}
	return d, nil
}

// parseRegion reads a GeoJSON region mask.
func parseRegion(e *env, name string) (geom.Polygon, error) {
	f, err := e.fetch(name)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(f)
	if err != nil {
		return nil, fmt.Errorf("driftval: opening region file: %v", err)
	}
	defer r.Close()
	return gdp.ParseRegion(r)
}

// gridConfig unmarshals a viper configuration for a velocity field.
func gridConfig(e *env, cfg *viper.Viper) (track.GridConfig, error) {
	var c track.GridConfig
	var err error
	if c.UFiles, err = e.fetchAll(cfg.GetStringSlice("Track.UFiles")); err != nil {
		return c, err
	}
	if c.VFiles, err = e.fetchAll(cfg.GetStringSlice("Track.VFiles")); err != nil {
		return c, err
	}
	if f := os.ExpandEnv(cfg.GetString("Track.GridFile")); f != "" {
		if c.GridFile, err = e.fetch(f); err != nil {
			return c, err
		}
	}
	c.SearchRadius = cfg.GetFloat64("Track.SearchRadius")
	return c, nil
}

// trackConfig unmarshals a viper configuration for particle tracking.
func trackConfig(cfg *viper.Viper) track.Config {
	c := track.DefaultConfig()
	c.Dt = time.Duration(cfg.GetInt("Track.DtMinutes")) * time.Minute
	c.OutputEvery = hours(cfg.GetInt("OutputEveryHours"))
	c.Duration = days(cfg.GetInt("MaxAgeDays"))
	c.EnsembleSize = cfg.GetInt("Track.EnsembleSize")
	c.EnsembleRadius = cfg.GetFloat64("Track.EnsembleRadius")
	return c
}

// dispersalConfig unmarshals a viper configuration for dispersal
// calculations.
func dispersalConfig(cfg *viper.Viper) (driftval.Config, error) {
	var c driftval.Config
	var err error
	c.Durations, err = getIntSlice(cfg, "Durations")
	if err != nil {
		return c, fmt.Errorf("driftval: invalid Durations: %v", err)
	}
	if len(c.Durations) == 0 {
		return c, fmt.Errorf("driftval: no Durations are specified")
	}
	c.Method, err = driftval.ParseDistanceMethod(cfg.GetString("Method"))
	return c, err
}

// loadDispersal reads the dispersal snapshot, checking that it was
// calculated with the configured durations and method.
func loadDispersal(e *env, cfg *viper.Viper) (driftval.Set, error) {
	c, err := dispersalConfig(cfg)
	if err != nil {
		return nil, err
	}
	f, err := e.fetch(cfg.GetString("DispersalFile"))
	if err != nil {
		return nil, err
	}
	return LoadDispersal(f, c)
}
