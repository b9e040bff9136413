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

package gdp

import (
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/index/rtree"

	"github.com/spatialmodel/driftval/internal/ncf"
)

// MaskNode is a velocity grid node and whether it is in the water.
type MaskNode struct {
	geom.Point
	Wet bool
}

// LandMask reports whether a position has model velocities near it.
type LandMask struct {
	u, v *rtree.Rtree
}

// neighbors is the number of nearest nodes of each component that are
// checked for water.
const neighbors = 2

// NewLandMask returns a mask from the zonal and meridional velocity
// nodes.
func NewLandMask(u, v []MaskNode) (*LandMask, error) {
	if len(u) < neighbors || len(v) < neighbors {
		return nil, fmt.Errorf("gdp: land mask needs at least %d nodes per component, have %d and %d", neighbors, len(u), len(v))
	}
	m := &LandMask{u: rtree.NewTree(25, 50), v: rtree.NewTree(25, 50)}
	for _, c := range []struct {
		t     *rtree.Rtree
		nodes []MaskNode
	}{{m.u, u}, {m.v, v}} {
		for i := range c.nodes {
			n := c.nodes[i]
			c.t.Insert(&n)
		}
	}
	return m, nil
}

// Wet returns whether any of the nearest zonal or meridional velocity
// nodes to p is in the water.
func (m *LandMask) Wet(p geom.Point) bool {
	return anyWet(m.u, p) || anyWet(m.v, p)
}

// anyWet returns whether any of the nearest nodes in t to p is wet. The
// search box grows until the nearest nodes are certain to be inside it.
func anyWet(t *rtree.Rtree, p geom.Point) bool {
	type cand struct {
		d   float64
		wet bool
	}
	for r := 0.05; r < 1000; r *= 2 {
		b := &geom.Bounds{
			Min: geom.Point{X: p.X - r, Y: p.Y - r},
			Max: geom.Point{X: p.X + r, Y: p.Y + r},
		}
		var c []cand
		for _, nI := range t.SearchIntersect(b) {
			n := nI.(*MaskNode)
			c = append(c, cand{d: math.Hypot(n.X-p.X, n.Y-p.Y), wet: n.Wet})
		}
		if len(c) < neighbors {
			continue
		}
		sort.Slice(c, func(i, j int) bool { return c[i].d < c[j].d })
		if c[neighbors-1].d > r {
			continue // a closer node may lie outside the box
		}
		for _, x := range c[:neighbors] {
			if x.wet {
				return true
			}
		}
		return false
	}
	return false
}

// LandMaskFromField returns a land mask made from the first time step of
// gridded velocity files: a node is wet where its velocity is not missing.
// uVar and vVar are the velocity variables and the node coordinates are
// read from the nav_lon and nav_lat variables of each file.
func LandMaskFromField(uFile, uVar, vFile, vVar string) (*LandMask, error) {
	u, err := maskNodes(uFile, uVar)
	if err != nil {
		return nil, err
	}
	v, err := maskNodes(vFile, vVar)
	if err != nil {
		return nil, err
	}
	return NewLandMask(u, v)
}

func maskNodes(name, v string) ([]MaskNode, error) {
	f, err := ncf.Open(name)
	if err != nil {
		return nil, fmt.Errorf("gdp: %w", err)
	}
	defer f.Close()
	dims, err := f.Lengths(v)
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	fixed := make([]int, len(dims)-2) // first time step and depth level
	vel, err := f.Float64s(v, fixed...)
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	lon, err := f.Float64s("nav_lon")
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	lat, err := f.Float64s("nav_lat")
	if err != nil {
		return nil, fmt.Errorf("gdp: %v", err)
	}
	if len(lon) != len(vel) || len(lat) != len(vel) {
		return nil, fmt.Errorf("gdp: %s: %d velocities for %d longitudes and %d latitudes", name, len(vel), len(lon), len(lat))
	}
	o := make([]MaskNode, 0, len(vel))
	for i, x := range vel {
		if math.IsNaN(lon[i]) || math.IsNaN(lat[i]) {
			continue
		}
		o = append(o, MaskNode{
			Point: geom.Point{X: lon[i], Y: lat[i]},
			Wet:   !math.IsNaN(x) && math.Abs(x) < 1e10,
		})
	}
	return o, nil
}

// ParseRegion reads a GeoJSON polygon or multipolygon.
func ParseRegion(r io.Reader) (geom.Polygon, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gdp: reading region: %w", err)
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("gdp: decoding region: %w", err)
	}
	var region geom.Polygon
	switch p := g.(type) {
	case geom.Polygon:
		region = p
	case geom.MultiPolygon:
		for _, pp := range p {
			region = append(region, pp...)
		}
	default:
		return nil, fmt.Errorf("gdp: invalid region geometry type %T", g)
	}
	return region, nil
}
