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

package track

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/driftval/internal/hash"
	"github.com/spatialmodel/driftval/internal/ncf"
)

// GridConfig specifies the files a GridField reads.
type GridConfig struct {
	// UFiles and VFiles are the zonal and meridional velocity files,
	// one pair per period, holding the same time steps.
	UFiles, VFiles []string

	// UVar and VVar are the velocity variable names, with dimensions
	// (time, depth, y, x) or (time, y, x). They default to uAvg and vAvg.
	UVar, VVar string

	// TimeVar is the name of the time coordinate. It defaults to time.
	TimeVar string

	// GridFile holds the node coordinates. If empty, the coordinates
	// are read from the first zonal velocity file.
	GridFile string

	// LonVar and LatVar are the node coordinate variables, either 2-D
	// (y, x) or 1-D. They default to nav_lon and nav_lat.
	LonVar, LatVar string

	// SearchRadius is the distance [degrees] within which grid nodes
	// contribute to an interpolated velocity. It defaults to 0.25.
	SearchRadius float64

	// CacheSize is the number of velocity time slices kept in memory.
	// It defaults to 16.
	CacheSize int
}

func (c *GridConfig) setDefaults() {
	def := func(s *string, d string) {
		if *s == "" {
			*s = d
		}
	}
	def(&c.UVar, "uAvg")
	def(&c.VVar, "vAvg")
	def(&c.TimeVar, "time")
	def(&c.LonVar, "nav_lon")
	def(&c.LatVar, "nav_lat")
	if c.SearchRadius <= 0 {
		c.SearchRadius = 0.25
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 16
	}
}

// GridField is a velocity field read from gridded NetCDF files. It
// interpolates between grid nodes by inverse-distance weighting and
// linearly in time. Land and fill values count as zero velocity.
type GridField struct {
	cfg GridConfig

	u, v  []*ncf.File
	steps []step
	nodes *rtree.Rtree
	nx    int

	cache *requestcache.Cache
}

// step is a time slice in one of the velocity files.
type step struct {
	t         time.Time
	file, rec int
}

// gridNode is a velocity grid node. i is its index in a time slice.
type gridNode struct {
	geom.Point
	i int
}

type sliceRequest struct {
	f   *ncf.File
	v   string
	rec int
}

// NewGridField opens the files in cfg. The returned field must be closed
// after use.
func NewGridField(cfg GridConfig) (*GridField, error) {
	cfg.setDefaults()
	if len(cfg.UFiles) == 0 || len(cfg.UFiles) != len(cfg.VFiles) {
		return nil, fmt.Errorf("track: need matching zonal and meridional velocity files, have %d and %d", len(cfg.UFiles), len(cfg.VFiles))
	}
	g := &GridField{cfg: cfg}
	for i := range cfg.UFiles {
		u, err := ncf.Open(cfg.UFiles[i])
		if err != nil {
			g.Close()
			return nil, err
		}
		g.u = append(g.u, u)
		v, err := ncf.Open(cfg.VFiles[i])
		if err != nil {
			g.Close()
			return nil, err
		}
		g.v = append(g.v, v)
		if err := g.addSteps(i); err != nil {
			g.Close()
			return nil, err
		}
	}
	sort.SliceStable(g.steps, func(i, j int) bool { return g.steps[i].t.Before(g.steps[j].t) })

	if err := g.loadNodes(); err != nil {
		g.Close()
		return nil, err
	}

	g.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(sliceRequest)
		return g.slice(r)
	}, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Memory(cfg.CacheSize))
	return g, nil
}

// addSteps adds the time steps of file pair i.
func (g *GridField) addSteps(i int) error {
	ut, err := g.u[i].Times(g.cfg.TimeVar)
	if err != nil {
		return err
	}
	vt, err := g.v[i].Times(g.cfg.TimeVar)
	if err != nil {
		return err
	}
	if len(ut) != len(vt) {
		return fmt.Errorf("track: %s has %d time steps but %s has %d", g.u[i].Name(), len(ut), g.v[i].Name(), len(vt))
	}
	for rec, t := range ut {
		if !t.Equal(vt[rec]) {
			return fmt.Errorf("track: time step %d differs between %s and %s", rec, g.u[i].Name(), g.v[i].Name())
		}
		g.steps = append(g.steps, step{t: t, file: i, rec: rec})
	}
	return nil
}

// loadNodes indexes the grid node coordinates.
func (g *GridField) loadNodes() error {
	f := g.u[0]
	if g.cfg.GridFile != "" {
		var err error
		if f, err = ncf.Open(g.cfg.GridFile); err != nil {
			return err
		}
		defer f.Close()
	}
	lonDims, err := f.Lengths(g.cfg.LonVar)
	if err != nil {
		return err
	}
	latDims, err := f.Lengths(g.cfg.LatVar)
	if err != nil {
		return err
	}
	lon, err := f.Float64s(g.cfg.LonVar)
	if err != nil {
		return err
	}
	lat, err := f.Float64s(g.cfg.LatVar)
	if err != nil {
		return err
	}
	var ny int
	switch {
	case len(lonDims) == 2 && len(latDims) == 2:
		if len(lon) != len(lat) {
			return fmt.Errorf("track: %s has %d values but %s has %d", g.cfg.LonVar, len(lon), g.cfg.LatVar, len(lat))
		}
		ny, g.nx = lonDims[0], lonDims[1]
	case len(lonDims) == 1 && len(latDims) == 1:
		ny, g.nx = len(lat), len(lon)
		lon2, lat2 := make([]float64, ny*g.nx), make([]float64, ny*g.nx)
		for j := 0; j < ny; j++ {
			for i := 0; i < g.nx; i++ {
				lon2[j*g.nx+i], lat2[j*g.nx+i] = lon[i], lat[j]
			}
		}
		lon, lat = lon2, lat2
	default:
		return fmt.Errorf("track: invalid grid coordinate dimensions %v and %v", lonDims, latDims)
	}

	uDims, err := g.u[0].Lengths(g.cfg.UVar)
	if err != nil {
		return err
	}
	if len(uDims) < 3 || uDims[len(uDims)-2] != ny || uDims[len(uDims)-1] != g.nx {
		return fmt.Errorf("track: velocity dimensions %v do not match the %dx%d grid", uDims, ny, g.nx)
	}

	g.nodes = rtree.NewTree(25, 50)
	for i := range lon {
		if math.IsNaN(lon[i]) || math.IsNaN(lat[i]) {
			continue
		}
		g.nodes.Insert(&gridNode{Point: geom.Point{X: lon[i], Y: lat[i]}, i: i})
	}
	return nil
}

// slice reads one velocity time slice.
func (g *GridField) slice(r sliceRequest) (*sparse.DenseArray, error) {
	dims, err := r.f.Lengths(r.v)
	if err != nil {
		return nil, err
	}
	fixed := []int{r.rec}
	if len(dims) == 4 {
		fixed = append(fixed, 0) // first depth level
	}
	return r.f.Dense(r.v, fixed...)
}

func (g *GridField) get(ctx context.Context, f *ncf.File, v string, rec int) (*sparse.DenseArray, error) {
	req := g.cache.NewRequest(ctx, sliceRequest{f: f, v: v, rec: rec}, hash.Key(f.Name(), v, rec))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*sparse.DenseArray), nil
}

// bracket returns the indices of the time steps before and after t and
// the weight of the second one.
func (g *GridField) bracket(t time.Time) (i0, i1 int, w float64) {
	n := len(g.steps)
	i := sort.Search(n, func(i int) bool { return g.steps[i].t.After(t) })
	switch {
	case i == 0:
		return 0, 0, 0
	case i == n:
		return n - 1, n - 1, 0
	}
	i0, i1 = i-1, i
	span := g.steps[i1].t.Sub(g.steps[i0].t)
	return i0, i1, float64(t.Sub(g.steps[i0].t)) / float64(span)
}

// weights returns the grid nodes near p and their normalized
// inverse-distance weights.
func (g *GridField) weights(p geom.Point) ([]*gridNode, []float64, error) {
	r := g.cfg.SearchRadius
	b := &geom.Bounds{
		Min: geom.Point{X: p.X - r, Y: p.Y - r},
		Max: geom.Point{X: p.X + r, Y: p.Y + r},
	}
	cosLat := math.Cos(p.Y * math.Pi / 180)
	var nodes []*gridNode
	var w []float64
	var sum float64
	for _, gI := range g.nodes.SearchIntersect(b) {
		n := gI.(*gridNode)
		dx, dy := (n.X-p.X)*cosLat, n.Y-p.Y
		d2 := dx*dx + dy*dy
		if d2 < 1e-20 {
			return []*gridNode{n}, []float64{1}, nil
		}
		nodes = append(nodes, n)
		w = append(w, 1/d2)
		sum += 1 / d2
	}
	if len(nodes) == 0 {
		return nil, nil, ErrOutOfBounds
	}
	for i := range w {
		w[i] /= sum
	}
	return nodes, w, nil
}

func interpolate(a *sparse.DenseArray, nodes []*gridNode, w []float64) float64 {
	var o float64
	for k, n := range nodes {
		v := a.Elements[n.i]
		if math.IsNaN(v) || math.Abs(v) > 1e10 {
			continue // land
		}
		o += v * w[k]
	}
	return o
}

// Velocity implements Field.
func (g *GridField) Velocity(ctx context.Context, t time.Time, p geom.Point) (u, v float64, err error) {
	nodes, w, err := g.weights(p)
	if err != nil {
		return 0, 0, err
	}
	i0, i1, tw := g.bracket(t)
	for k, i := range []int{i0, i1} {
		f := 1 - tw
		if k == 1 {
			if i1 == i0 {
				break
			}
			f = tw
		}
		s := g.steps[i]
		ua, err := g.get(ctx, g.u[s.file], g.cfg.UVar, s.rec)
		if err != nil {
			return 0, 0, err
		}
		va, err := g.get(ctx, g.v[s.file], g.cfg.VVar, s.rec)
		if err != nil {
			return 0, 0, err
		}
		u += f * interpolate(ua, nodes, w)
		v += f * interpolate(va, nodes, w)
	}
	return u, v, nil
}

// Times returns the first and last time steps of the field.
func (g *GridField) Times() (first, last time.Time) {
	if len(g.steps) == 0 {
		return
	}
	return g.steps[0].t, g.steps[len(g.steps)-1].t
}

// Close closes the velocity files.
func (g *GridField) Close() error {
	var err error
	for _, f := range append(append([]*ncf.File{}, g.u...), g.v...) {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
