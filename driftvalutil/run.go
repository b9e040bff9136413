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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/driftval"
	"github.com/spatialmodel/driftval/depthavg"
	"github.com/spatialmodel/driftval/gdp"
	"github.com/spatialmodel/driftval/store"
	"github.com/spatialmodel/driftval/track"
)

// DepthAvg depth-averages the model velocities of each of the given
// years.
func DepthAvg(ctx context.Context, c depthavg.Config, years []int, log logrus.FieldLogger) error {
	if len(years) == 0 {
		return fmt.Errorf("driftval: no years to depth-average")
	}
	for _, y := range years {
		u, v, err := c.Year(ctx, y, log)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"year": y, "u": u, "v": v}).Info("wrote depth averages")
	}
	return nil
}

// Starts chooses start positions from the GDP file gdpFile and stores
// them in the database dbFile and the NetCDF file startFile. If shpFile
// is not blank, the starts are also exported to it.
func Starts(ctx context.Context, gdpFile string, c gdp.StartConfig, dbFile, startFile, shpFile string, log logrus.FieldLogger) ([]driftval.Start, error) {
	d, err := gdp.Read(gdpFile)
	if err != nil {
		return nil, err
	}
	starts, err := d.Starts(c, log)
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		return nil, fmt.Errorf("driftval: no observations in %s meet the start criteria", gdpFile)
	}
	db, err := store.Open(dbFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.PutStarts(ctx, starts); err != nil {
		return nil, err
	}
	if err := gdp.WriteStarts(startFile, starts); err != nil {
		return nil, err
	}
	if shpFile != "" {
		if err := gdp.ExportStarts(shpFile, starts); err != nil {
			return nil, err
		}
	}
	log.WithField("starts", len(starts)).Info("saved starts")
	return starts, nil
}

// Trajectories stores the drogued trajectory following each start in
// the database dbFile, up to maxAge.
func Trajectories(ctx context.Context, gdpFile, dbFile string, maxAge time.Duration, log logrus.FieldLogger) error {
	db, err := store.Open(dbFile)
	if err != nil {
		return err
	}
	defer db.Close()
	starts, err := db.Starts(ctx)
	if err != nil {
		return err
	}
	if len(starts) == 0 {
		return fmt.Errorf("driftval: %s holds no starts; run the starts command first", dbFile)
	}
	d, err := gdp.Read(gdpFile)
	if err != nil {
		return err
	}
	trajs, err := d.Trajectories(starts, maxAge)
	if err != nil {
		return err
	}
	if err := db.PutTrajectories(ctx, trajs); err != nil {
		return err
	}
	log.WithField("trajectories", len(trajs)).Info("saved drifter trajectories")
	return nil
}

// loadStarts reads the starts from the NetCDF file startFile, or from the
// database dbFile if startFile is blank.
func loadStarts(ctx context.Context, dbFile, startFile string) ([]driftval.Start, error) {
	if startFile != "" {
		return gdp.ReadStarts(startFile)
	}
	db, err := store.Open(dbFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Starts(ctx)
}

// Track advects particles from the starts that fall within the time span
// of the velocity field and writes their trajectories to outFile. The
// starts are read from startFile if it is not blank and from dbFile
// otherwise.
func Track(ctx context.Context, grid track.GridConfig, c track.Config, dbFile, startFile, outFile string, log logrus.FieldLogger) error {
	if c.EnsembleSize < 2 {
		log.WithField("ensemble_size", c.EnsembleSize).Warn("single particle per start; the modelled interquartile range will be zero")
	}
	all, err := loadStarts(ctx, dbFile, startFile)
	if err != nil {
		return err
	}

	field, err := track.NewGridField(grid)
	if err != nil {
		return err
	}
	defer field.Close()
	first, last := field.Times()
	var starts []driftval.Start
	for _, s := range all {
		if !s.Time.Before(first) && !s.Time.After(last) {
			starts = append(starts, s)
		}
	}
	log.WithFields(logrus.Fields{
		"starts":  len(starts),
		"outside": len(all) - len(starts),
		"first":   first,
		"last":    last,
	}).Info("selected starts within the velocity field")
	if len(starts) == 0 {
		return fmt.Errorf("driftval: no starts fall between %v and %v", first, last)
	}

	t, err := c.Tracker(starts, field, log)
	if err != nil {
		return err
	}
	if err := t.Init(ctx); err != nil {
		return err
	}
	if err := t.Run(ctx); err != nil {
		return err
	}
	if err := t.Cleanup(ctx); err != nil {
		return err
	}
	return track.WriteOutput(outFile, t.Particles)
}

// Lookup returns the start with the given ID from the database dbFile.
// If id is negative, the start at p is returned instead.
func Lookup(ctx context.Context, dbFile string, id int, p geom.Point) (driftval.Start, error) {
	db, err := store.Open(dbFile)
	if err != nil {
		return driftval.Start{}, err
	}
	defer db.Close()
	if id < 0 {
		if id, err = db.StartID(ctx, p); err != nil {
			return driftval.Start{}, err
		}
	}
	return db.Start(ctx, id)
}

// Endpoints writes the particle positions after each duration [days] in
// the trajectory files to dir.
func Endpoints(ctx context.Context, trajectoryFiles []string, dir string, durations []int, every time.Duration, log logrus.FieldLogger) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("driftval: creating endpoint directory: %v", err)
	}
	return track.WriteEndpointFiles(ctx, trajectoryFiles, dir, durations, every, log)
}

// Dispersal calculates the dispersal vectors of the drifter trajectories
// in dbFile and the particle endpoints in endpointDir and saves them to
// outFile.
func Dispersal(ctx context.Context, c driftval.Config, dbFile, endpointDir, outFile string, log logrus.FieldLogger) (driftval.Set, error) {
	db, err := store.Open(dbFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	trajs, err := db.Trajectories(ctx)
	if err != nil {
		return nil, err
	}
	if len(trajs) == 0 {
		return nil, fmt.Errorf("driftval: %s holds no drifter trajectories; run the trajectories command first", dbFile)
	}
	set, err := driftval.Compute(ctx, c, trajs, track.EndpointSource(endpointDir, log), log)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, fmt.Errorf("driftval: creating dispersal file: %v", err)
	}
	if err := set.Save(f, c.Tag()); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	log.WithField("records", len(set)).Info("saved dispersal")
	return set, nil
}

// LoadDispersal reads a dispersal file saved with configuration c.
func LoadDispersal(name string, c driftval.Config) (driftval.Set, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("driftval: opening dispersal file: %v", err)
	}
	defer f.Close()
	return driftval.LoadSet(f, c.Tag())
}

// Stats summarizes each duration in set and writes the summaries to
// outFile. Durations without values are logged and left out.
func Stats(set driftval.Set, outFile string, log logrus.FieldLogger) ([]driftval.Summary, error) {
	var sums []driftval.Summary
	for _, d := range set.Durations() {
		s, err := set.Summarize(d)
		if errors.Is(err, driftval.ErrEmpty) {
			log.WithFields(logrus.Fields{
				"duration":   d,
				"n":          s.N,
				"non_moving": s.NonMoving,
				"invalid":    s.Invalid,
			}).Warn("no values to summarize")
			continue
		} else if err != nil {
			return nil, err
		}
		if s.NoModelSpread > 0 {
			log.WithFields(logrus.Fields{
				"duration":   d,
				"components": s.NoModelSpread,
			}).Warn("modelled interquartile range is zero; iqr ratio is NaN")
		}
		sums = append(sums, s)
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("driftval: summarizing dispersal: %w", driftval.ErrEmpty)
	}
	return sums, writeTable(outFile, "statistics", summaryTable(sums))
}

// Histogram bins component c of the normalized dispersal after duration
// [days] and writes the densities to outFile.
func Histogram(set driftval.Set, duration int, c driftval.Component, dividers []float64, outFile string) (driftval.Histogram, error) {
	h, err := set.Histogram(duration, c, dividers)
	if err != nil {
		return h, err
	}
	return h, writeTable(outFile, "histogram", histogramTable(h))
}
