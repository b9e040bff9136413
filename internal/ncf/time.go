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

package ncf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var timeUnits = map[string]time.Duration{
	"seconds": time.Second,
	"second":  time.Second,
	"secs":    time.Second,
	"sec":     time.Second,
	"s":       time.Second,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"mins":    time.Minute,
	"min":     time.Minute,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"hrs":     time.Hour,
	"hr":      time.Hour,
	"h":       time.Hour,
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"d":       24 * time.Hour,
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseUnits parses a CF time unit string such as
// "seconds since 1970-01-01 00:00:00" into the length of one time step
// and the reference time. Reference times are in UTC.
func ParseUnits(units string) (step time.Duration, epoch time.Time, err error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("ncf: invalid time units %q", units)
	}
	step, ok := timeUnits[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ncf: invalid time step in units %q", units)
	}
	ref := strings.TrimSpace(parts[1])
	for _, suffix := range []string{" UTC", "Z", "+00:00", ".0"} {
		ref = strings.TrimSuffix(ref, suffix)
	}
	for _, layout := range epochLayouts {
		if epoch, err = time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("ncf: invalid reference time in units %q", units)
}

// Times reads the time coordinate variable v and converts it using its
// units attribute. Missing times are returned as the zero time.
func (f *File) Times(v string, fixed ...int) ([]time.Time, error) {
	step, epoch, err := ParseUnits(f.Text(v, "units"))
	if err != nil {
		return nil, fmt.Errorf("%v (variable %s)", err, v)
	}
	vals, err := f.Float64s(v, fixed...)
	if err != nil {
		return nil, err
	}
	o := make([]time.Time, len(vals))
	for i, x := range vals {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		o[i] = epoch.Add(Offset(x, step))
	}
	return o, nil
}

// Offset converts a number of time steps into a duration, rounded to the
// nearest second.
func Offset(x float64, step time.Duration) time.Duration {
	return (time.Duration(x*float64(step/time.Millisecond)) * time.Millisecond).Round(time.Second)
}
