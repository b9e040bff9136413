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
	"io"
	"sort"

	"github.com/ctessum/geom"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is incremented whenever the snapshot layout changes.
const snapshotVersion = 1

type snapshot struct {
	Version int              `msgpack:"version"`
	Tag     string           `msgpack:"tag"`
	Records []snapshotRecord `msgpack:"records"`
}

// snapshotRecord stores complex numbers as (real, imaginary) pairs.
type snapshotRecord struct {
	Duration  int          `msgpack:"d"`
	ID        int          `msgpack:"id"`
	Start     [2]float64   `msgpack:"start"`
	Drifter   [2]float64   `msgpack:"drifter"`
	Centroid  [2]float64   `msgpack:"centroid"`
	Numerical [][2]float64 `msgpack:"numerical"`
}

func pair(z complex128) [2]float64 { return [2]float64{real(z), imag(z)} }

func unpair(p [2]float64) complex128 { return complex(p[0], p[1]) }

// Save writes s to w as zstd-compressed msgpack, labelled with tag
// (typically Config.Tag).
func (s Set) Save(w io.Writer, tag string) error {
	snap := snapshot{Version: snapshotVersion, Tag: tag, Records: make([]snapshotRecord, 0, len(s))}
	for k, r := range s {
		sr := snapshotRecord{
			Duration:  k.Duration,
			ID:        k.ID,
			Start:     [2]float64{r.Start.X, r.Start.Y},
			Drifter:   pair(r.Drifter),
			Centroid:  pair(r.Centroid),
			Numerical: make([][2]float64, len(r.Numerical)),
		}
		for i, n := range r.Numerical {
			sr.Numerical[i] = pair(n)
		}
		snap.Records = append(snap.Records, sr)
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		if snap.Records[i].Duration != snap.Records[j].Duration {
			return snap.Records[i].Duration < snap.Records[j].Duration
		}
		return snap.Records[i].ID < snap.Records[j].ID
	})

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("driftval: saving dispersal snapshot: %v", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("driftval: saving dispersal snapshot: %v", err)
	}
	return zw.Close()
}

// LoadSet reads a Set written by Set.Save. If tag is not empty, it must
// match the tag the set was saved with.
func LoadSet(r io.Reader, tag string) (Set, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("driftval: loading dispersal snapshot: %v", err)
	}
	defer zr.Close()
	var snap snapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("driftval: loading dispersal snapshot: %v", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("driftval: dispersal snapshot version %d is not supported (want %d)",
			snap.Version, snapshotVersion)
	}
	if tag != "" && snap.Tag != tag {
		return nil, fmt.Errorf("driftval: dispersal snapshot was computed with a different "+
			"configuration (tag %s, want %s)", snap.Tag, tag)
	}
	s := make(Set, len(snap.Records))
	for _, sr := range snap.Records {
		r := &Record{
			Start:     geom.Point{X: sr.Start[0], Y: sr.Start[1]},
			Drifter:   unpair(sr.Drifter),
			Centroid:  unpair(sr.Centroid),
			Numerical: make([]complex128, len(sr.Numerical)),
		}
		for i, n := range sr.Numerical {
			r.Numerical[i] = unpair(n)
		}
		s[Key{Duration: sr.Duration, ID: sr.ID}] = r
	}
	return s, nil
}
