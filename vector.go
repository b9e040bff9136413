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
	"math/cmplx"
)

// Vector is a dispersal vector. Z holds the zonal component as its real
// part and the meridional component as its imaginary part.
// The zero Vector is missing: Valid is false and Z should not be used.
type Vector struct {
	Z     complex128
	Valid bool
}

// NewVector returns a valid Vector holding z, or a missing Vector
// if either component of z is NaN or infinite.
func NewVector(z complex128) Vector {
	if cmplx.IsNaN(z) || cmplx.IsInf(z) {
		return Vector{}
	}
	return Vector{Z: z, Valid: true}
}

// Zonal returns the eastward component of v.
func (v Vector) Zonal() float64 { return real(v.Z) }

// Meridional returns the northward component of v.
func (v Vector) Meridional() float64 { return imag(v.Z) }

// Magnitude returns the length of v.
func (v Vector) Magnitude() float64 { return cmplx.Abs(v.Z) }

// Bearing returns the direction of v in radians clockwise from north.
func (v Vector) Bearing() float64 { return math.Atan2(real(v.Z), imag(v.Z)) }

func (v Vector) String() string {
	if !v.Valid {
		return "missing"
	}
	return fmt.Sprint(v.Z)
}

// Normalize divides v by c. The result is missing if either input is
// missing, if c has zero magnitude, or if the quotient is not finite.
func Normalize(v, c Vector) Vector {
	if !v.Valid || !c.Valid || c.Z == 0 {
		return Vector{}
	}
	return NewVector(v.Z / c.Z)
}
