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

package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/geom"

	"github.com/spatialmodel/driftval"
)

func testStarts() []driftval.Start {
	t0 := time.Date(2010, 4, 1, 6, 0, 0, 0, time.UTC)
	return []driftval.Start{
		{ID: 40, Drifter: 300234065515480, Point: geom.Point{X: -69.25, Y: 41.5}, Time: t0},
		{ID: 3, Drifter: 101, Point: geom.Point{X: -70, Y: 40}, Time: t0.Add(-240 * time.Hour)},
		{ID: 7, Drifter: 102, Point: geom.Point{X: -70, Y: 40}, Time: t0.Add(48 * time.Hour)},
	}
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStarts(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if err := s.PutStarts(ctx, testStarts()); err != nil {
		t.Fatal(err)
	}
	all, err := s.Starts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := testStarts()
	want[0], want[1], want[2] = want[1], want[2], want[0]
	if !reflect.DeepEqual(all, want) {
		t.Errorf("have %+v\nwant %+v", all, want)
	}

	tests := []struct {
		name string
		p    geom.Point
		id   int
		err  error
	}{
		{name: "unique", p: geom.Point{X: -69.25, Y: 41.5}, id: 40},
		{name: "shared", p: geom.Point{X: -70, Y: 40}, id: 3},
		{name: "missing", p: geom.Point{X: 0, Y: 0}, err: ErrNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, err := s.StartID(ctx, test.p)
			if !errors.Is(err, test.err) {
				t.Fatalf("have error %v, want %v", err, test.err)
			}
			if id != test.id {
				t.Errorf("have %d, want %d", id, test.id)
			}
		})
	}

	st, err := s.Start(ctx, 40)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(st, testStarts()[0]) {
		t.Errorf("have %+v, want %+v", st, testStarts()[0])
	}
	if _, err := s.Start(ctx, 41); !errors.Is(err, ErrNotFound) {
		t.Errorf("have error %v, want %v", err, ErrNotFound)
	}
}

func TestTrajectories(t *testing.T) {
	ctx := context.Background()
	name := filepath.Join(t.TempDir(), "driftval.db")
	s, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	trajs := make(map[int]driftval.Trajectory)
	for _, st := range testStarts() {
		tr := driftval.Trajectory{Start: st}
		for h := 0; h <= 24; h += 6 {
			tr.Samples = append(tr.Samples, driftval.Sample{
				Age:   time.Duration(h) * time.Hour,
				Point: geom.Point{X: st.X + 0.01*float64(h), Y: st.Y},
			})
		}
		trajs[st.ID] = tr
	}
	if err := s.PutTrajectories(ctx, trajs); err != nil {
		t.Fatal(err)
	}
	// Saving again replaces the samples.
	short := trajs[7]
	short.Samples = short.Samples[:2]
	trajs[7] = short
	if err := s.PutTrajectories(ctx, map[int]driftval.Trajectory{7: short}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	have, err := s.Trajectories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(have, trajs) {
		t.Errorf("have %+v\nwant %+v", have, trajs)
	}

	if err := s.PutTrajectories(ctx, map[int]driftval.Trajectory{8: trajs[7]}); err == nil {
		t.Error("saving a trajectory under the wrong ID should fail")
	}
}
