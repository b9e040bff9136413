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
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Component selects a component of a dispersal vector.
type Component int

const (
	// Zonal is the eastward component.
	Zonal Component = iota
	// Meridional is the northward component.
	Meridional
)

// ParseComponent returns the component with the given name.
func ParseComponent(name string) (Component, error) {
	switch name {
	case "zonal", "Zonal", "u":
		return Zonal, nil
	case "meridional", "Meridional", "v":
		return Meridional, nil
	}
	return Zonal, fmt.Errorf("driftval: invalid vector component %q; valid options are 'zonal' and 'meridional'", name)
}

func (c Component) String() string {
	if c == Meridional {
		return "meridional"
	}
	return "zonal"
}

func (c Component) of(v Vector) float64 {
	if c == Meridional {
		return v.Meridional()
	}
	return v.Zonal()
}

// Summary holds statistics of the normalized dispersal vectors for one
// drifter duration. Observed values are real drifter displacements
// divided by the centroid displacement; modelled values are numerical
// particle displacements divided by the same centroid.
type Summary struct {
	Duration int

	// N is the number of observed values; NumericalN is the number
	// of modelled values.
	N, NumericalN int

	// NonMoving counts records skipped because the centroid did not move.
	NonMoving int

	// Invalid counts records skipped because the normalized drifter
	// displacement was not finite.
	Invalid int

	MedianZonal, MedianMeridional float64

	IQRZonal, IQRMeridional           float64
	ModelIQRZonal, ModelIQRMeridional float64

	// IQRRatio is the observed interquartile range divided by
	// the modelled interquartile range. It is NaN for a component
	// whose modelled interquartile range is zero.
	IQRRatioZonal, IQRRatioMeridional float64

	// NoModelSpread counts the components with a zero modelled
	// interquartile range.
	NoModelSpread int
}

// normalized collects the normalized observed and modelled vectors for
// a duration.
func (s Set) normalized(duration int) (obs, mod []Vector, nonMoving, invalid int) {
	for _, k := range s.Keys(duration) {
		r := s[k]
		if r.Centroid == 0 {
			nonMoving++
			continue
		}
		d, n := r.Normalized()
		if !d.Valid {
			invalid++
			continue
		}
		obs = append(obs, d)
		mod = append(mod, n...)
	}
	return obs, mod, nonMoving, invalid
}

// Summarize calculates statistics for the given duration [days].
func (s Set) Summarize(duration int) (Summary, error) {
	obs, mod, nonMoving, invalid := s.normalized(duration)
	sum := Summary{
		Duration:   duration,
		N:          len(obs),
		NumericalN: len(mod),
		NonMoving:  nonMoving,
		Invalid:    invalid,
	}
	if len(obs) == 0 || len(mod) == 0 {
		return sum, fmt.Errorf("driftval: summarizing duration %d: %w", duration, ErrEmpty)
	}
	oz, om := components(obs, Zonal), components(obs, Meridional)
	mz, mm := components(mod, Zonal), components(mod, Meridional)

	sum.MedianZonal = quantile(0.5, oz)
	sum.MedianMeridional = quantile(0.5, om)
	sum.IQRZonal = iqr(oz)
	sum.IQRMeridional = iqr(om)
	sum.ModelIQRZonal = iqr(mz)
	sum.ModelIQRMeridional = iqr(mm)
	sum.IQRRatioZonal = sum.ratio(sum.IQRZonal, sum.ModelIQRZonal)
	sum.IQRRatioMeridional = sum.ratio(sum.IQRMeridional, sum.ModelIQRMeridional)
	return sum, nil
}

func (s *Summary) ratio(obs, mod float64) float64 {
	if mod == 0 {
		s.NoModelSpread++
		return math.NaN()
	}
	return obs / mod
}

// components returns the sorted values of component c of vs.
func components(vs []Vector, c Component) []float64 {
	o := make([]float64, len(vs))
	for i, v := range vs {
		o[i] = c.of(v)
	}
	sort.Float64s(o)
	return o
}

// quantile returns the p quantile of sorted values x, interpolating
// linearly between the closest ranks at position (n-1)p.
func quantile(p float64, x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	h := float64(len(x)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(x)-1 {
		return x[len(x)-1]
	}
	return x[i] + (h-lo)*(x[i+1]-x[i])
}

// iqr returns the interquartile range of sorted values x.
func iqr(x []float64) float64 {
	return quantile(0.75, x) - quantile(0.25, x)
}

// DefaultDividers returns the histogram bin edges used for normalized
// dispersal: 100 evenly spaced values from -10 to 10.
func DefaultDividers() []float64 {
	return floats.Span(make([]float64, 100), -10, 10)
}

// Histogram holds probability densities of the normalized observed and
// modelled values of one vector component.
type Histogram struct {
	Duration  int
	Component Component

	// Dividers are the bin edges; bin i spans Dividers[i] to Dividers[i+1].
	Dividers []float64

	// Observed and Modelled hold the density in each bin.
	Observed, Modelled []float64

	// N and NumericalN count the values that fell within the bins.
	N, NumericalN int
}

// Histogram calculates densities of the normalized values of component c
// for the given duration [days]. Values outside the range of dividers are
// left out. dividers must be sorted and have at least two elements.
func (s Set) Histogram(duration int, c Component, dividers []float64) (Histogram, error) {
	if len(dividers) < 2 || !sort.Float64sAreSorted(dividers) {
		return Histogram{}, fmt.Errorf("driftval: histogram needs at least two sorted dividers")
	}
	obs, mod, _, _ := s.normalized(duration)
	h := Histogram{Duration: duration, Component: c, Dividers: dividers}
	h.Observed, h.N = density(components(obs, c), dividers)
	h.Modelled, h.NumericalN = density(components(mod, c), dividers)
	if h.N == 0 {
		return h, fmt.Errorf("driftval: histogram for duration %d: %w", duration, ErrEmpty)
	}
	return h, nil
}

// density bins sorted values x and returns the probability density in
// each bin. A value equal to the last divider is counted in the last bin.
func density(x, dividers []float64) ([]float64, int) {
	lo, hi := dividers[0], dividers[len(dividers)-1]
	var in []float64
	var atEnd int
	for _, v := range x {
		switch {
		case v >= lo && v < hi:
			in = append(in, v)
		case v == hi:
			atEnd++
		}
	}
	counts := stat.Histogram(nil, dividers, in, nil)
	counts[len(counts)-1] += float64(atEnd)
	n := len(in) + atEnd
	if n == 0 {
		return counts, 0
	}
	for i := range counts {
		counts[i] /= float64(n) * (dividers[i+1] - dividers[i])
	}
	return counts, n
}
