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

package driftval

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/driftval/internal/hash"
	"golang.org/x/sync/errgroup"
)

// Key identifies a dispersal record by drifter duration [days] and
// start ID.
type Key struct {
	Duration int
	ID       int
}

// Record holds the dispersal vectors [km] of the real drifter and of the
// numerical particles released from one start, after one duration.
type Record struct {
	// Start is the release position.
	Start geom.Point

	// Drifter is the displacement of the real drifter.
	Drifter complex128

	// Centroid is the displacement of the centroid of the numerical
	// particle positions.
	Centroid complex128

	// Numerical holds the displacement of each numerical particle.
	Numerical []complex128
}

// Normalized returns the drifter and numerical displacements of r
// divided by its centroid displacement. Missing values are left out of
// numerical.
func (r *Record) Normalized() (drifter Vector, numerical []Vector) {
	c := NewVector(r.Centroid)
	drifter = Normalize(NewVector(r.Drifter), c)
	for _, n := range r.Numerical {
		if v := Normalize(NewVector(n), c); v.Valid {
			numerical = append(numerical, v)
		}
	}
	return drifter, numerical
}

// Set holds dispersal records.
type Set map[Key]*Record

// Durations returns the durations present in s in ascending order.
func (s Set) Durations() []int {
	m := make(map[int]struct{})
	for k := range s {
		m[k.Duration] = struct{}{}
	}
	o := make([]int, 0, len(m))
	for d := range m {
		o = append(o, d)
	}
	sort.Ints(o)
	return o
}

// Keys returns the keys in s for the given duration sorted by ID.
func (s Set) Keys(duration int) []Key {
	var o []Key
	for k := range s {
		if k.Duration == duration {
			o = append(o, k)
		}
	}
	sort.Slice(o, func(i, j int) bool { return o[i].ID < o[j].ID })
	return o
}

// Config holds the parameters of a dispersal calculation.
type Config struct {
	// Durations are the drifter durations [days] to calculate.
	Durations []int

	// Method is the distance calculation method.
	Method DistanceMethod
}

// DefaultDurations returns durations from 1 to 60 days.
func DefaultDurations() []int {
	o := make([]int, 60)
	for i := range o {
		o[i] = i + 1
	}
	return o
}

// Tag returns a key that identifies the configuration, for
// checking that a saved Set matches it.
func (c Config) Tag() string {
	return hash.Hash(c)
}

// EndpointSource returns the numerical particle endpoints after the given
// duration [days].
type EndpointSource func(ctx context.Context, duration int) ([]Endpoint, error)

// Skips counts the records that were left out of a calculation.
type Skips struct {
	// NoDrifter counts starts with numerical endpoints but without a real
	// drifter trajectory.
	NoDrifter int

	// NoDrifterPosition counts starts whose drifter trajectory has no
	// unique position at the duration.
	NoDrifterPosition int

	// NoCentroid counts starts whose centroid could not be calculated.
	NoCentroid int
}

// Compute calculates the dispersal records for every configured duration.
// drifters holds the real drifter trajectories by start ID and endpoints
// supplies the numerical particle endpoints. Durations are processed
// concurrently.
func Compute(ctx context.Context, cfg Config, drifters map[int]Trajectory, endpoints EndpointSource, log logrus.FieldLogger) (Set, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := make(Set)
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, d := range cfg.Durations {
		d := d
		g.Go(func() error {
			eps, err := endpoints(ctx, d)
			if err != nil {
				return fmt.Errorf("driftval: loading endpoints for duration %d: %w", d, err)
			}
			s, skips, err := computeDuration(ctx, d, cfg.Method, drifters, eps)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"duration":            d,
				"records":             len(s),
				"no_drifter":          skips.NoDrifter,
				"no_drifter_position": skips.NoDrifterPosition,
				"no_centroid":         skips.NoCentroid,
			}).Info("computed dispersal")
			mu.Lock()
			for k, r := range s {
				o[k] = r
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return o, nil
}

// computeDuration calculates the records for a single duration [days].
func computeDuration(ctx context.Context, duration int, m DistanceMethod, drifters map[int]Trajectory, eps []Endpoint) (Set, Skips, error) {
	var skips Skips
	byID := make(map[int][]geom.Point)
	var ids []int
	for _, e := range eps {
		if _, ok := byID[e.ID]; !ok {
			ids = append(ids, e.ID)
		}
		byID[e.ID] = append(byID[e.ID], e.Point)
	}
	sort.Ints(ids)

	age := time.Duration(duration) * Day
	o := make(Set)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, skips, err
		}
		tr, ok := drifters[id]
		if !ok {
			skips.NoDrifter++
			continue
		}
		dv := tr.Dispersal(age, m)
		if !dv.Valid {
			skips.NoDrifterPosition++
			continue
		}
		pts := byID[id]
		cen, err := Centroid(pts)
		if err != nil {
			skips.NoCentroid++
			continue
		}
		cv := m.Displacement(tr.Point, cen)
		if !cv.Valid {
			skips.NoCentroid++
			continue
		}
		r := &Record{
			Start:     tr.Point,
			Drifter:   dv.Z,
			Centroid:  cv.Z,
			Numerical: make([]complex128, 0, len(pts)),
		}
		for _, p := range pts {
			if v := m.Displacement(tr.Point, p); v.Valid {
				r.Numerical = append(r.Numerical, v.Z)
			}
		}
		o[Key{Duration: duration, ID: id}] = r
	}
	return o, skips, nil
}
