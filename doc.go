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

// Package driftval compares the dispersal of real ocean drifters with the
// dispersal of numerical particles advected by modelled currents.
//
// A dispersal vector is the displacement from a start position to the
// position reached after a fixed duration, stored as a complex number
// whose real part is the zonal (eastward) component and whose imaginary
// part is the meridional (northward) component, in kilometers. For each
// start, numerical particles are released as an ensemble; the displacement
// of the ensemble centroid is used to normalize both the real drifter
// displacement and the individual particle displacements.
package driftval

// Version gives the version number.
const Version = "0.1.0"
