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

// Package depthavg averages ocean-model velocities over the depth range of
// a drifter drogue.
package depthavg

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/interp"
)

// ErrExists is returned when an output file already exists.
var ErrExists = errors.New("depthavg: output already exists")

// ordinalOffset is the proleptic Gregorian ordinal of 1 January 1970,
// counting 1 January of year 1 as day 1.
const ordinalOffset = 719163

// Ordinal returns the proleptic Gregorian ordinal of the day of t, with
// 1 January of year 1 as day 1.
func Ordinal(t time.Time) int {
	t = t.UTC()
	days := int(math.Floor(float64(t.Unix()) / 86400))
	return days + ordinalOffset
}

// FromOrdinal returns midnight UTC of day n.
func FromOrdinal(n int) time.Time {
	return time.Unix(int64(n-ordinalOffset)*86400, 0).UTC()
}

// Weights returns the weight of each model level in the average of the
// velocity profile interpolated linearly at depths. levels are the level
// depths and must be increasing.
func Weights(levels, depths []float64) ([]float64, error) {
	if len(levels) < 2 {
		return nil, fmt.Errorf("depthavg: need at least two levels, have %d", len(levels))
	}
	if len(depths) == 0 {
		return nil, errors.New("depthavg: no depths to average over")
	}
	index := make([]float64, len(levels))
	for i := range index {
		if i > 0 && !(levels[i] > levels[i-1]) {
			return nil, fmt.Errorf("depthavg: levels must increase, have %v", levels)
		}
		index[i] = float64(i)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(levels, index); err != nil {
		return nil, fmt.Errorf("depthavg: fitting levels: %v", err)
	}
	w := make([]float64, len(levels))
	last := len(levels) - 1
	for _, z := range depths {
		if z < levels[0] || z > levels[last] {
			return nil, fmt.Errorf("depthavg: depth %g is outside the levels [%g, %g]", z, levels[0], levels[last])
		}
		f := pl.Predict(z)
		i := int(math.Floor(f))
		if i >= last {
			w[last] += 1 / float64(len(depths))
			continue
		}
		frac := f - float64(i)
		w[i] += (1 - frac) / float64(len(depths))
		w[i+1] += frac / float64(len(depths))
	}
	return w, nil
}

// Average returns the weighted average over the first dimension of in,
// which has dimensions (depth, y, x). Locations where any weighted value
// is missing are NaN.
func Average(in *sparse.DenseArray, weights []float64) (*sparse.DenseArray, error) {
	if len(in.Shape) != 3 {
		return nil, fmt.Errorf("depthavg: need a (depth, y, x) array, have shape %v", in.Shape)
	}
	if in.Shape[0] != len(weights) {
		return nil, fmt.Errorf("depthavg: %d levels but %d weights", in.Shape[0], len(weights))
	}
	ny, nx := in.Shape[1], in.Shape[2]
	o := sparse.ZerosDense(ny, nx)
	for k, w := range weights {
		if w == 0 {
			continue
		}
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				o.AddVal(w*in.Get(k, j, i), j, i)
			}
		}
	}
	return o, nil
}
