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

// Package ncf reads and writes the NetCDF classic files used throughout
// DriftVal.
package ncf

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// File is a NetCDF file on disk.
type File struct {
	*cdf.File

	f       *os.File
	size    int64
	created bool
}

// Open opens the named NetCDF file for reading.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("ncf: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ncf: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ncf: opening %s: %v", name, err)
	}
	return &File{File: cf, f: f, size: fi.Size()}, nil
}

// Create creates the named file and writes header h to it. h must
// already be defined.
func Create(name string, h *cdf.Header) (*File, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("ncf: %v", err)
	}
	cf, err := cdf.Create(f, h) // writes the header to f
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ncf: creating %s: %v", name, err)
	}
	return &File{File: cf, f: f, created: true}, nil
}

// Name returns the path of the file.
func (f *File) Name() string { return f.f.Name() }

// Close closes the file, updating the record count of created files.
func (f *File) Close() error {
	if f.created {
		if err := cdf.UpdateNumRecs(f.f); err != nil {
			f.f.Close()
			return fmt.Errorf("ncf: %v", err)
		}
	}
	return f.f.Close()
}

// Has returns whether the file contains variable v.
func (f *File) Has(v string) bool {
	return f.Header.Lengths(v) != nil
}

// NumRecs returns the number of records along the record dimension.
func (f *File) NumRecs() int {
	return int(f.Header.NumRecs(f.size))
}

// Lengths returns the dimension lengths of variable v, with the length of
// the record dimension filled in.
func (f *File) Lengths(v string) ([]int, error) {
	l := f.Header.Lengths(v)
	if l == nil {
		return nil, fmt.Errorf("ncf: variable %s not in file %s", v, f.Name())
	}
	o := append([]int{}, l...)
	if f.Header.IsRecordVariable(v) {
		o[0] = f.NumRecs()
	}
	return o, nil
}

// slab returns the begin and end indices of the values of v that share
// the leading indices fixed, along with the number of values and the shape
// of the trailing dimensions.
func (f *File) slab(v string, fixed []int) (begin, end []int, n int, shape []int, err error) {
	dims, err := f.Lengths(v)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	if len(fixed) > len(dims) {
		return nil, nil, 0, nil, fmt.Errorf("ncf: %d indices for %d-dimensional variable %s", len(fixed), len(dims), v)
	}
	begin = make([]int, len(dims))
	end = make([]int, len(dims))
	n = 1
	for i, d := range dims {
		if i < len(fixed) {
			if fixed[i] < 0 || fixed[i] >= d {
				return nil, nil, 0, nil, fmt.Errorf("ncf: index %d out of range [0, %d) for variable %s", fixed[i], d, v)
			}
			begin[i], end[i] = fixed[i], fixed[i]
			continue
		}
		n *= d
	}
	// end is the first index past the slab.
	switch {
	case len(dims) == 0:
	case len(fixed) == 0:
		end[0] = dims[0]
	default:
		end[len(fixed)-1]++
	}
	return begin, end, n, dims[len(fixed):], nil
}

// reader returns a reader over a slab of v.
func (f *File) reader(v string, fixed []int) (cdf.Reader, int, error) {
	begin, end, n, _, err := f.slab(v, fixed)
	if err != nil {
		return nil, 0, err
	}
	r := f.Reader(v, begin, end)
	if r == nil {
		return nil, 0, fmt.Errorf("ncf: variable %s not in file %s", v, f.Name())
	}
	return r, n, nil
}

// Float64s reads the values of variable v whose leading indices are
// fixed, so that Float64s("u", 3) returns record 3 of u. Fill and missing
// values are returned as NaN and packed values are unpacked with the
// scale_factor and add_offset attributes.
func (f *File) Float64s(v string, fixed ...int) ([]float64, error) {
	r, n, err := f.reader(v, fixed)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}
	buf := r.Zero(n)
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncf: reading variable %s: %v", v, err)
	}
	o, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("ncf: variable %s: %v", v, err)
	}

	var missing []float64
	if fill, ok := scalarFloat(f.Header.FillValue(v)); ok {
		missing = append(missing, fill)
	}
	if mv, ok := f.attrFloat(v, "missing_value"); ok {
		missing = append(missing, mv)
	}
	scale, ok := f.attrFloat(v, "scale_factor")
	if !ok {
		scale = 1
	}
	offset, _ := f.attrFloat(v, "add_offset")
	for i, x := range o {
		for _, m := range missing {
			if x == m {
				x = math.NaN()
				break
			}
		}
		o[i] = x*scale + offset
	}
	return o, nil
}

// Dense reads the values of v whose leading indices are fixed into an
// array with the shape of the remaining dimensions.
func (f *File) Dense(v string, fixed ...int) (*sparse.DenseArray, error) {
	_, _, _, shape, err := f.slab(v, fixed)
	if err != nil {
		return nil, err
	}
	data, err := f.Float64s(v, fixed...)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{1}
	}
	o := sparse.ZerosDense(shape...)
	copy(o.Elements, data)
	return o, nil
}

// Ints reads the raw values of the integer variable v whose leading
// indices are fixed.
func (f *File) Ints(v string, fixed ...int) ([]int, error) {
	r, n, err := f.reader(v, fixed)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []int{}, nil
	}
	buf := r.Zero(n)
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncf: reading variable %s: %v", v, err)
	}
	o := make([]int, n)
	switch b := buf.(type) {
	case []uint8:
		for i, x := range b {
			o[i] = int(int8(x))
		}
	case []int16:
		for i, x := range b {
			o[i] = int(x)
		}
	case []int32:
		for i, x := range b {
			o[i] = int(x)
		}
	default:
		return nil, fmt.Errorf("ncf: variable %s has non-integer type %T", v, buf)
	}
	return o, nil
}

// Write writes all values of variable v. data must be a slice of the
// variable's type with one element for every value.
func (f *File) Write(v string, data interface{}) error {
	end := f.Header.Lengths(v)
	if end == nil {
		return fmt.Errorf("ncf: variable %s not in file %s", v, f.Name())
	}
	n := 1
	for _, l := range end {
		n *= l
	}
	if l := length(data); l != n {
		return fmt.Errorf("ncf: variable %s has %d values but %d were given", v, n, l)
	}
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("ncf: writing variable %s: %v", v, err)
	}
	return nil
}

// WriteAt writes data to the values of v whose leading indices are
// fixed, so that WriteAt("u", data, 3) writes record 3 of u.
func (f *File) WriteAt(v string, data interface{}, fixed ...int) error {
	begin, end, n, _, err := f.slab(v, fixed)
	if err != nil {
		return err
	}
	if l := length(data); l != n {
		return fmt.Errorf("ncf: slab of variable %s has %d values but %d were given", v, n, l)
	}
	if _, err := f.Writer(v, begin, end).Write(data); err != nil {
		return fmt.Errorf("ncf: writing variable %s: %v", v, err)
	}
	return nil
}

// WriteDense writes data to the float variable v. NaN elements are
// written as the variable's _FillValue when it has one.
func (f *File) WriteDense(v string, data *sparse.DenseArray) error {
	n := 1
	for _, s := range data.Shape {
		n *= s
	}
	if len(data.Elements) != n {
		return fmt.Errorf("ncf: dims are %d but array length is %d", n, len(data.Elements))
	}
	fill, hasFill := scalarFloat(f.Header.FillValue(v))
	value := func(x float64) float64 {
		if hasFill && math.IsNaN(x) {
			return fill
		}
		return x
	}
	switch f.Header.ZeroValue(v, 0).(type) {
	case []float64:
		data64 := make([]float64, len(data.Elements))
		for i, e := range data.Elements {
			data64[i] = value(e)
		}
		return f.Write(v, data64)
	case []float32:
		data32 := make([]float32, len(data.Elements))
		for i, e := range data.Elements {
			data32[i] = float32(value(e))
		}
		return f.Write(v, data32)
	default:
		return fmt.Errorf("ncf: variable %s is not a float variable", v)
	}
}

// Text returns the string attribute a of variable v, or of the file if v
// is empty.
func (f *File) Text(v, a string) string {
	s, _ := f.Header.GetAttribute(v, a).(string)
	return s
}

func (f *File) attrFloat(v, a string) (float64, bool) {
	vals, err := toFloat64(f.Header.GetAttribute(v, a))
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []uint8:
		o := make([]float64, len(b))
		for i, x := range b {
			o[i] = float64(int8(x))
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, x := range b {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, x := range b {
			o[i] = float64(x)
		}
		return o, nil
	case []float32:
		o := make([]float64, len(b))
		for i, x := range b {
			o[i] = float64(x)
		}
		return o, nil
	case []float64:
		return b, nil
	default:
		return nil, fmt.Errorf("invalid value type %T", buf)
	}
}

func scalarFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case uint8:
		return float64(int8(x)), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func length(data interface{}) int {
	switch d := data.(type) {
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case string:
		return len(d)
	}
	return -1
}
