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
	"math"
	"math/cmplx"
	"testing"
)

func TestNormalizeBySelf(t *testing.T) {
	for _, z := range []complex128{1, 3 - 4i, -12.5 + 0.25i, 1e-8i} {
		v := Normalize(NewVector(z), NewVector(z))
		if !v.Valid {
			t.Fatalf("%v: result should be valid", z)
		}
		if cmplx.Abs(v.Z-1) > testTolerance {
			t.Errorf("%v / %v = %v, want 1+0i", z, z, v.Z)
		}
	}
}

func TestNormalizeMissing(t *testing.T) {
	tests := []struct {
		name string
		v, c Vector
	}{
		{"zero centroid", NewVector(1 + 1i), NewVector(0)},
		{"missing vector", Vector{}, NewVector(1)},
		{"missing centroid", NewVector(1), Vector{}},
		{"overflow", NewVector(complex(math.MaxFloat64, 0)), NewVector(complex(1e-300, 0))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if v := Normalize(test.v, test.c); v.Valid {
				t.Errorf("have %v, want missing", v)
			}
		})
	}
}

func TestNewVector(t *testing.T) {
	if v := NewVector(complex(math.NaN(), 0)); v.Valid {
		t.Error("NaN should be missing")
	}
	if v := NewVector(complex(0, math.Inf(-1))); v.Valid {
		t.Error("Inf should be missing")
	}
	if v := NewVector(0); !v.Valid {
		t.Error("zero should be valid")
	}
	if s := (Vector{}).String(); s != "missing" {
		t.Errorf("String: have %q", s)
	}
}
